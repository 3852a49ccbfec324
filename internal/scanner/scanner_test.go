package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/provider"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
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

type testSink struct {
	created [][]models.OutpointInfo
	deleted [][]models.OutpointInfo
}

func (s *testSink) OnCreated(o []models.OutpointInfo) { s.created = append(s.created, o) }
func (s *testSink) OnDeleted(o []models.OutpointInfo) { s.deleted = append(s.deleted, o) }

func newHarness(t *testing.T, gapLimit uint32) (*Scanner, *addressbook.Book, *utxostore.Store, *provider.Mock) {
	t.Helper()
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	root := testRoot(t, 1)
	book := addressbook.New(crypto, registry)
	store := utxostore.New(book)
	mock := provider.NewMock()
	mock.SetBlock(models.ZoneCyprus1, "latest", models.BlockRef{Hash: "0xtip1", Number: 1})

	s := New(crypto, registry, book, store, mock, root, WithGapLimit(gapLimit))
	return s, book, store, mock
}

func TestScanExtendsGapLimitOnBothChangeAndExternal(t *testing.T) {
	s, book, _, mock := newHarness(t, 2)

	err := s.Scan(context.Background(), models.ZoneCyprus1, 0, nil)
	require.NoError(t, err)

	external := book.ListByPath(models.PathBIP44External)
	change := book.ListByPath(models.PathBIP44Change)
	assert.Len(t, external, 2)
	assert.Len(t, change, 2)
	for _, info := range external {
		assert.Equal(t, models.StatusUnused, info.Status)
	}

	assert.Equal(t, 1, mock.CallCount("GetBlock"))
}

func TestScanUsedAddressResetsGapCounter(t *testing.T) {
	s, book, store, mock := newHarness(t, 2)
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	root := testRoot(t, 1)

	first, err := keyderivation.DeriveNextQiAddress(crypto, registry, root, 0, models.ZoneCyprus1, false, 0)
	require.NoError(t, err)

	mock.SetOutpoints(first.Address, []models.Outpoint{{TxHash: "0xabc", Index: 0, Denomination: 2}})

	sink := &testSink{}
	err = s.Scan(context.Background(), models.ZoneCyprus1, 0, sink)
	require.NoError(t, err)

	external := book.ListByPath(models.PathBIP44External)
	// The used address plus a trailing run of 2 unused ones.
	assert.Len(t, external, 3)
	assert.Equal(t, models.StatusUsed, external[0].Status)
	assert.Equal(t, models.StatusUnused, external[1].Status)
	assert.Equal(t, models.StatusUnused, external[2].Status)

	assert.NotEmpty(t, sink.created)

	spendable := store.SpendableFor(models.ZoneCyprus1, 1)
	assert.Equal(t, models.DenominationTable[2], spendable)
}

func TestSyncDoesNotResetExistingAddresses(t *testing.T) {
	s, book, _, _ := newHarness(t, 1)

	require.NoError(t, s.Scan(context.Background(), models.ZoneCyprus1, 0, nil))
	firstRun := book.ListByPath(models.PathBIP44External)
	require.Len(t, firstRun, 1)

	require.NoError(t, s.Sync(context.Background(), models.ZoneCyprus1, 0, nil))
	secondRun := book.ListByPath(models.PathBIP44External)
	// Sync must not forget the address Scan already discovered, and
	// since it remains UNUSED the gap limit of 1 is already satisfied —
	// no further derivation happens.
	assert.Len(t, secondRun, 1)
	assert.Equal(t, firstRun[0].Address, secondRun[0].Address)
}

func TestScanReconcilesPendingAfterSync(t *testing.T) {
	s, book, store, mock := newHarness(t, 1)

	require.NoError(t, s.Scan(context.Background(), models.ZoneCyprus1, 0, nil))
	entries := book.ListByPath(models.PathBIP44External)
	require.Len(t, entries, 1)

	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{
		{Outpoint: models.Outpoint{TxHash: "0xpending", Index: 0, Denomination: 1}, Address: entries[0].Address, Zone: models.ZoneCyprus1},
	}))
	require.NoError(t, store.MoveToPending([]models.Outpoint{{TxHash: "0xpending", Index: 0, Denomination: 1}}))

	mock.SetOutpoints(entries[0].Address, nil)
	require.NoError(t, s.Sync(context.Background(), models.ZoneCyprus1, 0, nil))

	assert.Empty(t, store.Pending())
}
