package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubkeyBase58(t *testing.T) {
	const tokenProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	p, err := TryPubkeyFromBase58(tokenProgram)
	require.NoError(t, err)
	assert.Equal(t, tokenProgram, p.String())
	assert.False(t, p.IsZero())

	_, err = TryPubkeyFromBase58("abc")
	assert.Error(t, err, "长度不足 32 字节")

	_, err = TryPubkeyFromBase58("0OIl")
	assert.Error(t, err, "非法 base58 字符")

	assert.Panics(t, func() { PubkeyFromBase58("abc") })
}

func TestPubkeyFromBytes(t *testing.T) {
	b := make([]byte, 32)
	b[31] = 7
	p, err := PubkeyFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(7), p[31])

	_, err = PubkeyFromBytes(b[:31])
	assert.Error(t, err)
}

func TestSignature(t *testing.T) {
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = byte(i)
	}
	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)

	back, err := SignatureFromBase58(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, back)

	_, err = SignatureFromBytes(raw[:10])
	assert.Error(t, err)
	assert.True(t, Signature{}.IsZero())
}

func TestHash(t *testing.T) {
	_, err := HashFromBytes(make([]byte, 31))
	assert.Error(t, err)

	h, err := HashFromBytes(make([]byte, 32))
	require.NoError(t, err)
	back, err := HashFromBase58(h.String())
	require.NoError(t, err)
	assert.True(t, h.Equals(back))
}
