package qicrypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
)

func testPrivateKey(t *testing.T, seedByte byte) qicrypto.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seedByte + byte(i)
	}
	priv, err := qicrypto.New().ParsePrivateKey(raw)
	require.NoError(t, err)
	return priv
}

// TestSchnorrSignVerifyRoundTrip exercises spec §8 scenario 5's literal
// property: a single-input signature verifies against the input's own
// pubkey and the signed hash, and fails against a different pubkey or a
// tampered hash.
func TestSchnorrSignVerifyRoundTrip(t *testing.T) {
	crypto := qicrypto.New()
	priv := testPrivateKey(t, 1)
	other := testPrivateKey(t, 99)

	var msgHash [32]byte
	copy(msgHash[:], []byte("deterministic test message hash"))

	sig, err := crypto.SchnorrSign(priv, msgHash)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	assert.True(t, crypto.SchnorrVerify(priv.PubKey(), msgHash, sig),
		"signature must verify against the signing key's own pubkey")

	assert.False(t, crypto.SchnorrVerify(other.PubKey(), msgHash, sig),
		"signature must not verify against an unrelated pubkey")

	var tampered [32]byte
	copy(tampered[:], msgHash[:])
	tampered[0] ^= 0xff
	assert.False(t, crypto.SchnorrVerify(priv.PubKey(), tampered, sig),
		"signature must not verify against a different hash")
}

// TestMuSigSignVerifyRoundTrip exercises spec §8 scenario 6's literal
// property: a MuSig aggregate signature verifies against the
// MuSig-aggregated pubkey and the signed hash, and fails against the
// plain (non-aggregated) pubkey of any one signer.
func TestMuSigSignVerifyRoundTrip(t *testing.T) {
	crypto := qicrypto.New()
	privs := []qicrypto.PrivateKey{testPrivateKey(t, 1), testPrivateKey(t, 50)}
	pubs := []qicrypto.PublicKey{privs[0].PubKey(), privs[1].PubKey()}

	var msgHash [32]byte
	copy(msgHash[:], []byte("deterministic multisig message.."))

	sig, err := crypto.MuSigSign(privs, msgHash)
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	assert.True(t, crypto.MuSigVerify(pubs, msgHash, sig),
		"musig signature must verify against the aggregated pubkey set")

	assert.False(t, crypto.SchnorrVerify(pubs[0], msgHash, sig),
		"musig signature must not verify against a single signer's plain pubkey")
}
