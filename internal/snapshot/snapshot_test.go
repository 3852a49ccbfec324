package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/mnemonic"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/paymentchannel"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func fakeCompressedPubKeyHex() string {
	pub := make([]byte, 33)
	pub[0] = 0x02
	pub[32] = 0x01
	return hex.EncodeToString(pub)
}

func TestExportRestoreRoundTrip(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	mn := mnemonic.NewBIP39Adapter()

	seed, err := mn.ToSeed(testPhrase, "")
	require.NoError(t, err)
	root, err := bip32.NewMasterNode(crypto, seed)
	require.NoError(t, err)

	book := addressbook.New(crypto, registry)
	addr, err := keyderivation.DeriveNextQiAddress(crypto, registry, root, 0, models.ZoneCyprus1, false, 0)
	require.NoError(t, err)
	require.NoError(t, book.Put(addr))

	store := utxostore.New(book)
	require.NoError(t, store.ImportOutpoints([]models.OutpointInfo{
		{
			Outpoint: models.Outpoint{TxHash: "0xaaaa", Index: 0, Denomination: 3},
			Address:  addr.Address,
			Zone:     models.ZoneCyprus1,
		},
	}))

	otherSeed := make([]byte, 32)
	copy(otherSeed, seed)
	otherSeed[0] ^= 0xff
	otherRoot, err := bip32.NewMasterNode(crypto, otherSeed)
	require.NoError(t, err)

	channels := paymentchannel.New(crypto, registry, book, root)
	pc, _, err := keyderivation.PaymentCodeForAccount(otherRoot, 0)
	require.NoError(t, err)
	require.NoError(t, channels.OpenChannel(pc.String()))
	_, err = channels.NextSendAddress(pc.String(), models.ZonePaxos2, 0, nil)
	require.NoError(t, err)

	snap := Export(testPhrase, book, store, channels)
	data, err := Marshal(snap)
	require.NoError(t, err)

	restoredRoot, restoredBook, restoredStore, restoredChannels, err := Restore(crypto, registry, mn, "", data)
	require.NoError(t, err)

	assert.Equal(t, root.PublicKey().Compressed(), restoredRoot.PublicKey().Compressed())

	restoredAddr, err := restoredBook.GetByAddress(addr.Address)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUsed, restoredAddr.Status)

	assert.Equal(t, models.DenominationTable[3], restoredStore.SpendableFor(models.ZoneCyprus1, 0))
	assert.Contains(t, restoredChannels.OpenChannels(), pc.String())
	assert.Len(t, restoredChannels.SentAddresses(pc.String()), 1)
}

func TestRestoreRejectsWrongCoinType(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	mn := mnemonic.NewBIP39Adapter()

	snap := &Snapshot{Version: CurrentVersion, CoinType: 0, MnemonicPhrase: testPhrase}
	data, err := Marshal(snap)
	require.NoError(t, err)

	_, _, _, _, err = Restore(crypto, registry, mn, "", data)
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterrors.ErrCorruptSnapshot)
}

func TestRestoreRejectsBIP44RederivationMismatch(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	mn := mnemonic.NewBIP39Adapter()

	snap := &Snapshot{
		Version:        CurrentVersion,
		CoinType:       models.QiCoinType,
		MnemonicPhrase: testPhrase,
		Addresses: []AddressRecord{
			{
				Address:        "0x00000000000000000000000000000000000000aa",
				PubKey:         fakeCompressedPubKeyHex(),
				Account:        0,
				Index:          0,
				Zone:           string(models.ZoneCyprus1),
				DerivationPath: models.PathBIP44External,
				Status:         string(models.StatusUnused),
			},
		},
	}
	data, err := Marshal(snap)
	require.NoError(t, err)

	_, _, _, _, err = Restore(crypto, registry, mn, "", data)
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterrors.ErrCorruptSnapshot)
}

func TestRestoreRejectsMalformedAddress(t *testing.T) {
	crypto := qicrypto.New()
	registry := zone.NewRegistry()
	mn := mnemonic.NewBIP39Adapter()

	snap := &Snapshot{
		Version:        CurrentVersion,
		CoinType:       models.QiCoinType,
		MnemonicPhrase: testPhrase,
		Addresses: []AddressRecord{
			{Address: "0xnothex", PubKey: "00", DerivationPath: models.PathBIP44External, Status: string(models.StatusUnused), Zone: string(models.ZoneCyprus1)},
		},
	}
	data, err := Marshal(snap)
	require.NoError(t, err)

	_, _, _, _, err = Restore(crypto, registry, mn, "", data)
	require.Error(t, err)
	assert.ErrorIs(t, err, walleterrors.ErrCorruptSnapshot)
}

func TestSaveAndLoadFromFileRoundTrip(t *testing.T) {
	snap := &Snapshot{Version: CurrentVersion, CoinType: models.QiCoinType, MnemonicPhrase: testPhrase}
	path := filepath.Join(t.TempDir(), "nested", "wallet.snapshot.json")

	require.NoError(t, SaveToFile(path, snap))

	data, err := LoadFromFile(path)
	require.NoError(t, err)

	var roundTripped Snapshot
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, snap.MnemonicPhrase, roundTripped.MnemonicPhrase)
}
