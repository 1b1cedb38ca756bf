package concurrency

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMapOrderedPreservesOrder(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out, err := MapOrdered(context.Background(), 3, items, func(_ context.Context, i int) (int, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return i * i, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64, 81, 100}, out)
}

func TestMapOrderedRespectsLimit(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	var running, maxRunning atomic.Int32
	_, err := MapOrdered(context.Background(), 2, make([]struct{}, 20), func(_ context.Context, _ struct{}) (struct{}, error) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, maxRunning.Load(), int32(2))
}

func TestMapOrderedReturnsFirstError(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	boom := errors.New("boom")
	out, err := MapOrdered(context.Background(), 0, []int{1, 2, 3}, func(ctx context.Context, i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return i, nil
	})
	require.ErrorIs(t, err, boom)
	require.Nil(t, out)
}

func TestNewPoolCancelsOnError(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	p := NewPool(context.Background(), 2)
	p.Go(func(ctx context.Context) error {
		return errors.New("first")
	})
	p.Go(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	err := p.Wait()
	require.EqualError(t, err, "first")
}
