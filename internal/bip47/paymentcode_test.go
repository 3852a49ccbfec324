package bip47

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
)

func testAccountNode(t *testing.T, seedByte byte) *bip32.Node {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte + byte(i)
	}
	node, err := bip32.NewMasterNode(qicrypto.New(), seed)
	require.NoError(t, err)
	return node
}

func TestPaymentCodeRoundTrip(t *testing.T) {
	node := testAccountNode(t, 1)
	pc := NewPaymentCode(node)

	encoded := pc.String()
	assert.NotEmpty(t, encoded)

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, pc.PubKey(), parsed.PubKey())
	assert.Equal(t, pc.ChainCode(), parsed.ChainCode())
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "not base58check", in: "not-a-payment-code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestDerivePaymentAddressSendReceiveSymmetry(t *testing.T) {
	crypto := qicrypto.New()
	alice := testAccountNode(t, 1)
	bob := testAccountNode(t, 100)

	alicePC := NewPaymentCode(alice)
	bobPC := NewPaymentCode(bob)

	for i := uint32(0); i < 5; i++ {
		_, sendPub, err := DerivePaymentAddress(crypto, alice, bobPC, i, RoleSend)
		require.NoError(t, err)

		receivePriv, receivePub, err := DerivePaymentAddress(crypto, bob, alicePC, i, RoleReceive)
		require.NoError(t, err)

		assert.Equal(t, sendPub.Compressed(), receivePub.Compressed(),
			"sender's derived pubkey must match receiver's reconstructed pubkey at index %d", i)
		assert.NotNil(t, receivePriv)
	}
}

func TestDerivePaymentAddressDistinctPerIndex(t *testing.T) {
	crypto := qicrypto.New()
	alice := testAccountNode(t, 1)
	bobPC := NewPaymentCode(testAccountNode(t, 100))

	_, pub0, err := DerivePaymentAddress(crypto, alice, bobPC, 0, RoleSend)
	require.NoError(t, err)
	_, pub1, err := DerivePaymentAddress(crypto, alice, bobPC, 1, RoleSend)
	require.NoError(t, err)

	assert.NotEqual(t, pub0.Compressed(), pub1.Compressed())
}
