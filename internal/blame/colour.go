package blame

import (
	"iter"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	colourSaturation = 0.75
	huesPerRound     = 1024
)

// UniqueColours returns an unbounded sequence of distinct colours in "#rrggbb" form. Consecutive
// colours are spread far apart on the hue circle. Every iteration starts from the beginning, so
// the sequence is the same for every computation.
func UniqueColours() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for i := uint64(0); ; i++ {
			round, step := i/huesPerRound, i%huesPerRound
			hue := radicalInverse(step) * 360
			lightness := 0.3 + 0.4*fraction(0.5+radicalInverse(round))

			c := colorful.Hsl(hue, colourSaturation, lightness).Hex()
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			if !yield(c) {
				return
			}
		}
	}
}

// radicalInverse mirrors the binary digits of n around the radix point: 0, 1/2, 1/4, 3/4, 1/8, ...
func radicalInverse(n uint64) float64 {
	inv, f := 0.0, 0.5
	for ; n > 0; n >>= 1 {
		if n&1 == 1 {
			inv += f
		}
		f /= 2
	}
	return inv
}

func fraction(x float64) float64 {
	return x - float64(int(x))
}

// assignColours gives every distinct user a colour, in order of first appearance.
func assignColours(segments []PathSegment) map[string]UserInfo {
	users := make(map[string]UserInfo)
	next, stop := iter.Pull(UniqueColours())
	defer stop()

	for _, s := range segments {
		if _, ok := users[s.User]; ok {
			continue
		}
		colour, _ := next()
		users[s.User] = UserInfo{Colour: colour}
	}
	return users
}
