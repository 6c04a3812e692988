package xorname

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixMatches(t *testing.T) {
	n := Hash([]byte("hello"))
	p := NewPrefix(n, 4)
	require.True(t, p.Matches(n))

	other := n.WithBitFlipped(20)
	require.True(t, p.Matches(other), "flipping a bit outside the prefix must not break the match")

	other2 := n.WithBitFlipped(1)
	require.False(t, p.Matches(other2))
}

func TestPrefixPushedPopped(t *testing.T) {
	n := Hash([]byte("world"))
	root := RootPrefix()
	require.Equal(t, 0, root.BitCount())
	require.True(t, root.Matches(n))

	child := root.Pushed(n.Bit(0))
	require.Equal(t, 1, child.BitCount())
	require.True(t, child.Matches(n))

	require.True(t, child.Popped().Equal(root))
}

func TestPrefixSibling(t *testing.T) {
	n := Hash([]byte("sibling"))
	p := NewPrefix(n, 3)
	sib := p.Sibling()
	require.NotEqual(t, p.String(), sib.String())
	require.Equal(t, sib, sib.Sibling().Sibling())
}

func TestPrefixIsExtensionOf(t *testing.T) {
	n := Hash([]byte("ext"))
	p1 := NewPrefix(n, 2)
	p2 := NewPrefix(n, 5)
	require.True(t, p2.IsExtensionOf(p1))
	require.False(t, p1.IsExtensionOf(p2))
	require.True(t, p1.IsAncestorOf(p2))
}

func TestPrefixIsCoveredBy(t *testing.T) {
	root := RootPrefix()
	n := Random()
	zero := root.Pushed(0)
	one := root.Pushed(1)

	require.False(t, root.IsCoveredBy(nil))
	require.True(t, root.IsCoveredBy([]Prefix{zero, one}))

	zeroZero := zero.Pushed(0)
	zeroOne := zero.Pushed(1)
	require.True(t, root.IsCoveredBy([]Prefix{zeroZero, zeroOne, one}))
	require.False(t, root.IsCoveredBy([]Prefix{zeroZero, one}))
	_ = n
}

func TestPrefixSubstitutedIn(t *testing.T) {
	base := Hash([]byte("base"))
	target := Hash([]byte("target"))
	p := NewPrefix(base, 10)
	out := p.SubstitutedIn(target)
	require.True(t, p.Matches(out))
	for i := 10; i < 256; i++ {
		require.Equal(t, target.Bit(i), out.Bit(i))
	}
}

func TestCmpDistanceAndCloser(t *testing.T) {
	target := Hash([]byte("target"))
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))

	if CmpDistance(target, a, b) < 0 {
		require.True(t, Closer(target, a, b))
	} else {
		require.False(t, Closer(target, a, b))
	}
	require.Equal(t, 0, CmpDistance(target, a, a))
}
