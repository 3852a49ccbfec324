package bip32

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestNewMasterNode(t *testing.T) {
	crypto := qicrypto.New()

	tests := []struct {
		name        string
		seed        []byte
		expectError bool
	}{
		{name: "32-byte seed", seed: testSeed(), expectError: false},
		{name: "64-byte seed", seed: make([]byte, 64), expectError: false},
		{name: "too short", seed: make([]byte, 8), expectError: true},
		{name: "too long", seed: make([]byte, 65), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewMasterNode(crypto, tt.seed)
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, node)
			} else {
				require.NoError(t, err)
				require.NotNil(t, node)
				assert.True(t, node.HasPrivateKey())
				assert.Equal(t, uint8(0), node.Depth())
			}
		})
	}
}

func TestMasterNodeDeterministic(t *testing.T) {
	crypto := qicrypto.New()
	seed := testSeed()

	n1, err := NewMasterNode(crypto, seed)
	require.NoError(t, err)
	n2, err := NewMasterNode(crypto, seed)
	require.NoError(t, err)

	assert.Equal(t, n1.PrivateKey().Bytes(), n2.PrivateKey().Bytes())
	assert.Equal(t, n1.ChainCode(), n2.ChainCode())
}

func TestDeriveChildHardenedRequiresPrivateKey(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	neutered := master.Neuter()
	_, err = neutered.DeriveChild(HardenedOffset)
	assert.ErrorIs(t, err, walleterrors.ErrHardenedWithoutPrivateKey)

	child, err := neutered.DeriveChild(0)
	assert.NoError(t, err)
	assert.False(t, child.HasPrivateKey())
}

func TestDeriveChildMatchesPublicDerivation(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	child, err := master.DeriveChild(5)
	require.NoError(t, err)

	neuteredParent := master.Neuter()
	publicChild, err := neuteredParent.DeriveChild(5)
	require.NoError(t, err)

	assert.Equal(t, child.PublicKey().Compressed(), publicChild.PublicKey().Compressed())
	assert.Equal(t, child.ChainCode(), publicChild.ChainCode())
}

func TestDerivePath(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	node, err := DerivePath(master, "m/44'/969'/0'/0/5")
	require.NoError(t, err)
	assert.Equal(t, uint8(5), node.Depth())

	again, err := DerivePath(master, "44'/969'/0'/0/5")
	require.NoError(t, err)
	assert.Equal(t, node.PublicKey().Compressed(), again.PublicKey().Compressed())
}

func TestDerivePathRejectsGarbage(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	_, err = DerivePath(master, "m/abc")
	assert.ErrorIs(t, err, walleterrors.ErrInvalidPath)
}

func TestDeriveChildDepthExceeded(t *testing.T) {
	crypto := qicrypto.New()
	node, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	for i := 0; i < MaxDepth; i++ {
		node, err = node.DeriveChild(uint32(i))
		require.NoError(t, err)
	}
	_, err = node.DeriveChild(0)
	assert.ErrorIs(t, err, walleterrors.ErrDepthExceeded)
}

func TestExtendedKeyRoundTrip(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	xprv, err := ExtendedKey(master)
	require.NoError(t, err)
	assert.NotEmpty(t, xprv)

	fields, err := ParseExtendedKey(xprv)
	require.NoError(t, err)
	assert.True(t, fields.IsPrivate)
	assert.Equal(t, VersionPrivate, fields.Version)
	assert.Equal(t, master.ChainCode(), fields.ChainCode)

	neutered := master.Neuter()
	xpub, err := ExtendedKey(neutered)
	require.NoError(t, err)

	pubFields, err := ParseExtendedKey(xpub)
	require.NoError(t, err)
	assert.False(t, pubFields.IsPrivate)
	assert.Equal(t, neutered.PublicKey().Compressed(), pubFields.KeyData[:])
}

func TestParseExtendedKeyRejectsBadChecksum(t *testing.T) {
	crypto := qicrypto.New()
	master, err := NewMasterNode(crypto, testSeed())
	require.NoError(t, err)

	xprv, err := ExtendedKey(master)
	require.NoError(t, err)

	tampered := xprv[:len(xprv)-1] + "x"
	_, err = ParseExtendedKey(tampered)
	assert.Error(t, err)
}
