package osm

import "math"

// Bbox is a bounding box in WGS84 degrees.
type Bbox struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// BboxForNodes returns the smallest box containing all the given nodes.
// The second return value is false if nodes is empty.
func BboxForNodes(nodes []*Feature) (Bbox, bool) {
	if len(nodes) == 0 {
		return Bbox{}, false
	}

	b := Bbox{
		Top:    math.Inf(-1),
		Bottom: math.Inf(1),
		Left:   math.Inf(1),
		Right:  math.Inf(-1),
	}
	for _, n := range nodes {
		b.Top = math.Max(b.Top, n.Lat)
		b.Bottom = math.Min(b.Bottom, n.Lat)
		b.Left = math.Min(b.Left, n.Lon)
		b.Right = math.Max(b.Right, n.Lon)
	}
	return b, true
}
