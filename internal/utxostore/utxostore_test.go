package utxostore

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

func testStoreWithAddress(t *testing.T) (*Store, *addressbook.Book, models.OutpointInfo) {
	t.Helper()
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	book := addressbook.New(crypto, registry)

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	root, err := bip32.NewMasterNode(crypto, seed)
	require.NoError(t, err)

	info, err := keyderivation.DeriveNextQiAddress(crypto, registry, root, 0, models.ZoneCyprus1, false, 0)
	require.NoError(t, err)
	require.NoError(t, book.Put(info))

	store := New(book)
	outpoint := models.OutpointInfo{
		Outpoint: models.Outpoint{TxHash: "0xaaa", Index: 0, Denomination: 2},
		Address:  info.Address,
		Zone:     models.ZoneCyprus1,
	}
	return store, book, outpoint
}

func TestImportOutpointsIdempotent(t *testing.T) {
	store, book, outpoint := testStoreWithAddress(t)

	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{outpoint}))
	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{outpoint}))

	assert.Len(t, store.Available(models.ZoneCyprus1), 1)

	owner, err := book.GetByAddress(outpoint.Address)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUsed, owner.Status)
}

func TestSpendableAndLockedFor(t *testing.T) {
	store, _, outpoint := testStoreWithAddress(t)
	locked := outpoint
	locked.Outpoint.TxHash = "0xbbb"
	locked.Outpoint.Denomination = 3
	locked.Outpoint.Lock = 100

	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{outpoint, locked}))

	assert.Equal(t, models.DenominationTable[2], store.SpendableFor(models.ZoneCyprus1, 50))
	assert.Equal(t, models.DenominationTable[3], store.LockedFor(models.ZoneCyprus1, 50))

	// Once the lock height passes, the previously-locked outpoint becomes spendable.
	assert.Equal(t, models.DenominationTable[2]+models.DenominationTable[3], store.SpendableFor(models.ZoneCyprus1, 150))
	assert.Equal(t, uint64(0), store.LockedFor(models.ZoneCyprus1, 150))
}

func TestMoveToPendingRequiresAvailable(t *testing.T) {
	store, _, outpoint := testStoreWithAddress(t)

	err := store.MoveToPending([]models.Outpoint{outpoint.Outpoint})
	assert.Error(t, err)

	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{outpoint}))
	require.NoError(t, store.MoveToPending([]models.Outpoint{outpoint.Outpoint}))

	assert.Empty(t, store.Available(models.ZoneCyprus1))
	assert.Len(t, store.Pending(), 1)
}

func TestReconcilePendingDropsSpentKeepsLive(t *testing.T) {
	store, _, outpoint := testStoreWithAddress(t)
	second := outpoint
	second.Outpoint.TxHash = "0xccc"
	second.Outpoint.Denomination = 1

	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{outpoint, second}))
	require.NoError(t, store.MoveToPending([]models.Outpoint{outpoint.Outpoint, second.Outpoint}))

	// The node reports only `second` still live; `outpoint` is confirmed-spent.
	query := func(address string) ([]models.Outpoint, error) {
		return []models.Outpoint{second.Outpoint}, nil
	}

	require.NoError(t, store.ReconcilePending(models.ZoneCyprus1, query))

	assert.Empty(t, store.Pending())
	available := store.Available(models.ZoneCyprus1)
	require.Len(t, available, 1)
	assert.Equal(t, second.Outpoint.TxHash, available[0].Outpoint.TxHash)
}

func TestLastDerivationIndexTracksMaximum(t *testing.T) {
	store, _, _ := testStoreWithAddress(t)

	_, ok := store.LastDerivationIndex(models.ZoneCyprus1, 0)
	assert.False(t, ok)

	store.SetLastDerivationIndex(models.ZoneCyprus1, 0, 5)
	store.SetLastDerivationIndex(models.ZoneCyprus1, 0, 3)

	idx, ok := store.LastDerivationIndex(models.ZoneCyprus1, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(5), idx)
}
