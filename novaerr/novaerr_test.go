package novaerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfClassifiesSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{ErrUntrustedSAP, KindValidation},
		{ErrInvalidPayload, KindValidation},
		{ErrNoMatchingSection, KindRouting},
		{ErrCannotRoute, KindRouting},
		{ErrConnectionClosed, KindDelivery},
		{ErrChunkNotFound, KindData},
		{ErrRemovedFromSection, KindMembership},
		{ErrUnexpectedQueryResponse, KindUnexpected},
	}
	for _, c := range cases {
		k, ok := KindOf(c.err)
		require.True(t, ok)
		require.Equal(t, c.kind, k)
	}
}

func TestKindOfUnwrapsFailedSendAndNotEnoughChunks(t *testing.T) {
	fs := &FailedSend{Peer: "node-1", Err: ErrConnectionClosed}
	k, ok := KindOf(fs)
	require.True(t, ok)
	require.Equal(t, KindDelivery, k)
	require.ErrorIs(t, fs, ErrConnectionClosed)

	nec := &NotEnoughChunksRetrieved{Expected: 4, Retrieved: 1}
	k, ok = KindOf(nec)
	require.True(t, ok)
	require.Equal(t, KindData, k)
}

func TestKindOfReturnsFalseForUnknownErrors(t *testing.T) {
	_, ok := KindOf(fmt.Errorf("some other package's own error"))
	require.False(t, ok)
}

func TestKindStringMatchesSpecNames(t *testing.T) {
	require.Equal(t, "validation", KindValidation.String())
	require.Equal(t, "delivery", KindDelivery.String())
	require.Equal(t, "membership", KindMembership.String())
}
