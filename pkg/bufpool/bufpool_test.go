package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsRequestedSize(t *testing.T) {
	p := NewPool(nil)

	buf := p.Get(100)
	require.Len(t, buf, 100)
	require.GreaterOrEqual(t, cap(buf), 100)
	p.Put(buf)
}

func TestGetSelectsTier(t *testing.T) {
	p := NewPool(nil)

	small := p.Get(10)
	require.Equal(t, DefaultSmallSize, cap(small))

	medium := p.Get(DefaultSmallSize + 1)
	require.Equal(t, DefaultMediumSize, cap(medium))

	large := p.Get(DefaultMediumSize + 1)
	require.Equal(t, DefaultLargeSize, cap(large))

	p.Put(small)
	p.Put(medium)
	p.Put(large)
}

func TestGetOversizeNotPooled(t *testing.T) {
	p := NewPool(nil)

	buf := p.Get(DefaultLargeSize + 1)
	require.Len(t, buf, DefaultLargeSize+1)

	// Put should be a no-op (not panic) for a non-tiered capacity.
	p.Put(buf)
}

func TestPutNilIsNoop(t *testing.T) {
	p := NewPool(nil)
	require.NotPanics(t, func() { p.Put(nil) })
}

func TestCustomConfig(t *testing.T) {
	cfg := &Config{SmallSize: 128, MediumSize: 1024, LargeSize: 8192}
	p := NewPool(cfg)

	buf := p.Get(64)
	require.Equal(t, 128, cap(buf))
}

func TestGlobalPoolRoundTrip(t *testing.T) {
	buf := Get(2048)
	require.Len(t, buf, 2048)
	Put(buf)

	buf32 := GetUint32(512)
	require.Len(t, buf32, 512)
	Put(buf32)
}
