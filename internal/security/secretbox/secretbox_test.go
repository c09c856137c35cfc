package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(seed byte) []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed + byte(i)
	}
	return raw
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	box, err := New(base64.StdEncoding.EncodeToString(testKey(1)))
	require.NoError(t, err)

	msg := "refresh-token ✓ secreto"
	ct, err := box.Encrypt(msg)
	require.NoError(t, err)
	require.NotContains(t, ct, "secreto")
	require.True(t, IsSealed(ct))

	pt, err := box.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	box, err := New(hex.EncodeToString(testKey(7)))
	require.NoError(t, err)

	ct, err := box.Encrypt("top secret")
	require.NoError(t, err)

	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	bs[0] ^= 0x01 // flip
	corrupted := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)

	_, err = box.Decrypt(corrupted)
	require.Error(t, err)

	_, err = box.Decrypt("no-separator")
	require.ErrorIs(t, err, ErrFormat)
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, err := New(base64.StdEncoding.EncodeToString(testKey(1)))
	require.NoError(t, err)
	b, err := New(base64.StdEncoding.EncodeToString(testKey(2)))
	require.NoError(t, err)

	ct, err := a.Encrypt("x")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	require.Error(t, err)
}

func TestNew_InvalidKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	_, err = New("short")
	require.Error(t, err)
	require.False(t, IsSealed("plain-token"))
}
