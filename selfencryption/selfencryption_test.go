package selfencryption

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novanet/novanet/xorname"
)

func TestEncryptDecryptSpotPublic(t *testing.T) {
	data := []byte("hello novanet")
	addr, chunk, err := EncryptSpot(data, Public, nil)
	require.NoError(t, err)
	require.Equal(t, chunk.Address, addr.Name)

	out, err := DecryptSpot(chunk, Public, nil)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestEncryptDecryptSpotPrivate(t *testing.T) {
	data := []byte("secret owner-scoped data")
	owner := make([]byte, 32)
	_, _ = rand.Read(owner)

	addr, chunk, err := EncryptSpot(data, Private, owner)
	require.NoError(t, err)
	require.NotEqual(t, data, chunk.Bytes)

	out, err := DecryptSpot(chunk, Private, owner)
	require.NoError(t, err)
	require.Equal(t, data, out)

	_, err = DecryptSpot(chunk, Private, make([]byte, 32))
	require.Error(t, err)
	require.Equal(t, Private, addr.Scope)
}

func TestEncryptSpotRejectsOversizedPayload(t *testing.T) {
	_, _, err := EncryptSpot(make([]byte, MinEncryptableBytes), Public, nil)
	require.Error(t, err)
}

func TestEncryptBlobRejectsUndersizedPayload(t *testing.T) {
	_, _, _, err := EncryptBlob(make([]byte, MinEncryptableBytes-1), Public, nil)
	require.Error(t, err)
}

func TestEncryptDecryptBlobPublicRoundTrip(t *testing.T) {
	data := make([]byte, MinEncryptableBytes*5)
	_, _ = rand.Read(data)

	addr, head, chunks, err := EncryptBlob(data, Public, nil)
	require.NoError(t, err)
	require.Equal(t, Public, addr.Scope)

	store := make(map[xorname.Name][]byte)
	for _, c := range chunks {
		store[c.Address] = c.Bytes
	}
	fetch := func(name xorname.Name) ([]byte, error) {
		b := store[name]
		return b, nil
	}

	out, err := DecryptBlob(head, Public, nil, fetch)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, out))
}

func TestEncryptDecryptBlobPrivateRoundTrip(t *testing.T) {
	data := make([]byte, MinEncryptableBytes*3)
	_, _ = rand.Read(data)
	owner := make([]byte, 32)
	_, _ = rand.Read(owner)

	_, head, chunks, err := EncryptBlob(data, Private, owner)
	require.NoError(t, err)

	store := make(map[xorname.Name][]byte)
	for _, c := range chunks {
		store[c.Address] = c.Bytes
	}
	fetch := func(name xorname.Name) ([]byte, error) { return store[name], nil }

	out, err := DecryptBlob(head, Private, owner, fetch)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, out))
}

func TestEncryptBlobWrapsRecursivelyForLargeDataMaps(t *testing.T) {
	// Fifty maxChunkSize segments give a serialised DataMapLevel of
	// 1 + 4 + 50*72 = 3605 bytes, past MinEncryptableBytes, triggering one
	// level of DataMapLevel::Additional wrapping.
	data := make([]byte, maxChunkSize*50)
	_, _ = rand.Read(data)

	addr, head, chunks, err := EncryptBlob(data, Public, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	level, err := UnmarshalDataMapLevel(head.Bytes)
	require.NoError(t, err)
	require.NotNil(t, level.Additional)

	store := make(map[xorname.Name][]byte)
	for _, c := range chunks {
		store[c.Address] = c.Bytes
	}
	fetch := func(name xorname.Name) ([]byte, error) { return store[name], nil }

	out, err := DecryptBlob(head, Public, nil, fetch)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, out))
	require.NotEqual(t, xorname.Name{}, addr.Name)
}

func TestReadRangeReturnsRequestedSlice(t *testing.T) {
	data := make([]byte, MinEncryptableBytes*4)
	_, _ = rand.Read(data)

	_, head, chunks, err := EncryptBlob(data, Public, nil)
	require.NoError(t, err)

	store := make(map[xorname.Name][]byte)
	for _, c := range chunks {
		store[c.Address] = c.Bytes
	}
	fetch := func(name xorname.Name) ([]byte, error) { return store[name], nil }

	const from, length = 100, 50
	out, err := ReadRange(head, Public, nil, from, length, fetch)
	require.NoError(t, err)
	require.Equal(t, data[from:from+length], out)
}

func TestReadRangeClampsToDataSize(t *testing.T) {
	data := make([]byte, MinEncryptableBytes*3)
	_, _ = rand.Read(data)

	_, head, chunks, err := EncryptBlob(data, Public, nil)
	require.NoError(t, err)

	store := make(map[xorname.Name][]byte)
	for _, c := range chunks {
		store[c.Address] = c.Bytes
	}
	fetch := func(name xorname.Name) ([]byte, error) { return store[name], nil }

	out, err := ReadRange(head, Public, nil, int64(len(data)-10), 1000, fetch)
	require.NoError(t, err)
	require.Equal(t, data[len(data)-10:], out)
}

func TestDataMapMarshalRoundTrip(t *testing.T) {
	m := DataMap{Chunks: []ChunkInfo{
		{Index: 0, SrcHash: xorname.Random(), DstHash: xorname.Random(), Size: 10},
		{Index: 1, SrcHash: xorname.Random(), DstHash: xorname.Random(), Size: 20},
	}}
	b, err := m.MarshalBinary()
	require.NoError(t, err)

	out, err := UnmarshalDataMap(b)
	require.NoError(t, err)
	require.Equal(t, m, out)
}
