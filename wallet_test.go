package qiwallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/provider"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

func testSeed(b byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b + byte(i)
	}
	return seed
}

func TestWalletScanThenSnapshotExport(t *testing.T) {
	crypto := qicrypto.New()
	mock := provider.NewMock()
	mock.SetBlock(models.ZoneCyprus1, "latest", models.BlockRef{Hash: "0xtip", Number: 1})

	seed := testSeed(1)
	w, err := New(crypto, mock, seed, WithGapLimit(1))
	require.NoError(t, err)

	require.NoError(t, w.Scan(context.Background(), models.ZoneCyprus1, 0, nil))

	external := w.Addresses(models.PathBIP44External)
	change := w.Addresses(models.PathBIP44Change)
	assert.Len(t, external, 1)
	assert.Len(t, change, 1)

	snap := w.Snapshot("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	assert.Equal(t, models.QiCoinType, snap.CoinType)
	assert.Len(t, snap.Addresses, 2)
}

func TestWalletImportPrivateKeyAndBalances(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	mock := provider.NewMock()

	seed := testSeed(2)
	w, err := New(crypto, mock, seed)
	require.NoError(t, err)

	root, err := bip32.NewMasterNode(crypto, append([]byte("import-key-fixture-seed-material"), 0, 0))
	require.NoError(t, err)

	var rawKey []byte
	for i := uint32(0); i < 1000; i++ {
		node, err := bip32.DerivePath(root, fmt.Sprintf("44'/969'/0'/0/%d", i))
		if err != nil {
			continue
		}
		addr := keyderivation.AddressOf(crypto, node.PublicKey())
		if keyderivation.IsQiAddress(addr) && registry.InZone(addr[:], models.ZoneCyprus1) {
			rawKey = node.PrivateKey().Bytes()
			break
		}
	}
	require.NotNil(t, rawKey, "fixture must find at least one Qi/Cyprus1 key within the search budget")

	imported, err := w.ImportPrivateKey(rawKey, models.ZoneCyprus1)
	require.NoError(t, err)
	assert.Equal(t, models.ImportedPath, imported.DerivationPath)

	assert.Equal(t, uint64(0), w.SpendableBalance(models.ZoneCyprus1, 0))
	assert.Equal(t, uint64(0), w.LockedBalance(models.ZoneCyprus1, 0))
}

func TestWalletOpenChannelAndReceiveAddress(t *testing.T) {
	crypto := qicrypto.New()
	mock := provider.NewMock()

	w, err := New(crypto, mock, testSeed(3))
	require.NoError(t, err)

	counterpartyRoot, err := bip32.NewMasterNode(crypto, testSeed(200))
	require.NoError(t, err)
	pc, _, err := keyderivation.PaymentCodeForAccount(counterpartyRoot, 0)
	require.NoError(t, err)

	require.NoError(t, w.OpenChannel(pc.String()))

	info, err := w.NextReceiveAddress(pc.String(), models.ZoneCyprus1, 0)
	require.NoError(t, err)
	assert.Equal(t, pc.String(), info.DerivationPath)
}
