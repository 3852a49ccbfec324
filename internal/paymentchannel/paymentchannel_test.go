package paymentchannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

func testRoot(t *testing.T, seedByte byte) *bip32.Node {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte + byte(i)
	}
	root, err := bip32.NewMasterNode(qicrypto.New(), seed)
	require.NoError(t, err)
	return root
}

func TestOpenChannelIsIdempotent(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	bobRoot := testRoot(t, 100)
	bobPC, _, err := keyderivation.PaymentCodeForAccount(bobRoot, 0)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 1))

	require.NoError(t, m.OpenChannel(bobPC.String()))
	require.NoError(t, m.OpenChannel(bobPC.String()))

	assert.Contains(t, book.Paths(), bobPC.String())
}

func TestNextReceiveAddressStoredInBook(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	bobRoot := testRoot(t, 100)
	bobPC, _, err := keyderivation.PaymentCodeForAccount(bobRoot, 0)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 1))
	require.NoError(t, m.OpenChannel(bobPC.String()))

	info1, err := m.NextReceiveAddress(bobPC.String(), models.ZoneCyprus1, 0)
	require.NoError(t, err)
	info2, err := m.NextReceiveAddress(bobPC.String(), models.ZoneCyprus1, 0)
	require.NoError(t, err)

	assert.NotEqual(t, info1.Address, info2.Address)
	assert.Greater(t, info2.Index, info1.Index)

	stored, err := book.GetByAddress(info1.Address)
	require.NoError(t, err)
	assert.Equal(t, bobPC.String(), stored.DerivationPath)
}

func TestNextSendAddressNotStoredInBookAndSkipsUsed(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	aliceRoot := testRoot(t, 1)
	alicePC, _, err := keyderivation.PaymentCodeForAccount(aliceRoot, 0)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 100))
	require.NoError(t, m.OpenChannel(alicePC.String()))

	used := map[string]bool{}
	checker := func(addr string) (bool, error) { return used[addr], nil }

	first, err := m.NextSendAddress(alicePC.String(), models.ZonePaxos2, 0, checker)
	require.NoError(t, err)

	_, err = book.GetByAddress(first.Address)
	assert.Error(t, err, "send addresses must never be stored in the address book")

	used[first.Address] = true
	second, err := m.NextSendAddress(alicePC.String(), models.ZonePaxos2, 0, checker)
	require.NoError(t, err)
	assert.NotEqual(t, first.Address, second.Address)
}

func TestSentAddressesTracksGenerationHistory(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	aliceRoot := testRoot(t, 1)
	alicePC, _, err := keyderivation.PaymentCodeForAccount(aliceRoot, 0)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 100))
	require.NoError(t, m.OpenChannel(alicePC.String()))

	first, err := m.NextSendAddress(alicePC.String(), models.ZonePaxos2, 0, nil)
	require.NoError(t, err)
	second, err := m.NextSendAddress(alicePC.String(), models.ZonePaxos2, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{first.Address, second.Address}, m.SentAddresses(alicePC.String()))
	assert.Contains(t, m.OpenChannels(), alicePC.String())
}

func TestRestoreSentAddressesReopensChannel(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	bobRoot := testRoot(t, 100)
	bobPC, _, err := keyderivation.PaymentCodeForAccount(bobRoot, 0)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 1))

	restored := []string{"0xaaaa", "0xbbbb"}
	require.NoError(t, m.RestoreSentAddresses(bobPC.String(), restored))

	assert.Equal(t, restored, m.SentAddresses(bobPC.String()))
	assert.Contains(t, m.OpenChannels(), bobPC.String())
}

func TestNextAddressRejectsUnopenedChannel(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	book := addressbook.New(crypto, registry)
	m := New(crypto, registry, book, testRoot(t, 1))

	_, err := m.NextReceiveAddress("not-a-real-channel", models.ZoneCyprus1, 0)
	assert.Error(t, err)
}
