// Package snapshot implements wallet serialization (spec §4.8): a
// canonical JSON record of every address, outpoint, and payment-channel
// send-history the wallet holds, plus the mnemonic phrase needed to
// rebuild its root key, and the validation a restore must pass before
// the in-memory state is trusted.
package snapshot

import (
	"encoding/hex"
	"encoding/json"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip47"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/mnemonic"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/paymentchannel"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// CurrentVersion is the snapshot format version this package produces
// and the only one it currently restores (spec §4.8).
const CurrentVersion = 1

// Snapshot is the canonical JSON shape spec §4.8/§6 names; field names
// and types are part of the external contract and must not change.
type Snapshot struct {
	Version                    int                 `json:"version"`
	CoinType                   uint32              `json:"coin_type"`
	MnemonicPhrase             string              `json:"mnemonic_phrase"`
	Addresses                  []AddressRecord     `json:"addresses"`
	Outpoints                  []OutpointRecord    `json:"outpoints"`
	PendingOutpoints           []OutpointRecord    `json:"pending_outpoints"`
	SenderPaymentCodeAddresses map[string][]string `json:"sender_payment_code_addresses"`
}

// AddressRecord is one AddressInfo entry, across every derivation path.
type AddressRecord struct {
	Address               string `json:"address"`
	PubKey                string `json:"pubkey"`
	Account               uint32 `json:"account"`
	Index                 int64  `json:"index"`
	Zone                  string `json:"zone"`
	Change                bool   `json:"change"`
	Status                string `json:"status"`
	DerivationPath        string `json:"derivation_path"`
	LastSyncedBlockHash   string `json:"last_synced_block_hash,omitempty"`
	LastSyncedBlockNumber uint64 `json:"last_synced_block_number,omitempty"`
	ImportedSecret        string `json:"imported_secret,omitempty"`
}

// OutpointRecord is one OutpointInfo entry.
type OutpointRecord struct {
	TxHash         string  `json:"tx_hash"`
	Index          uint16  `json:"index"`
	Denomination   uint8   `json:"denomination"`
	Lock           uint64  `json:"lock,omitempty"`
	Address        string  `json:"address"`
	Zone           string  `json:"zone"`
	Account        *uint32 `json:"account,omitempty"`
	DerivationPath *string `json:"derivation_path,omitempty"`
}

// Export builds a Snapshot from the current state of book, store, and
// channels, embedding mnemonicPhrase verbatim (spec §4.8: the phrase
// itself is part of the record — this module carries no keystore
// encryption-at-rest; see DESIGN.md).
func Export(mnemonicPhrase string, book *addressbook.Book, store *utxostore.Store, channels *paymentchannel.Manager) *Snapshot {
	snap := &Snapshot{
		Version:                    CurrentVersion,
		CoinType:                   models.QiCoinType,
		MnemonicPhrase:             mnemonicPhrase,
		SenderPaymentCodeAddresses: make(map[string][]string),
	}

	for _, path := range book.Paths() {
		for _, info := range book.ListByPath(path) {
			snap.Addresses = append(snap.Addresses, addressToRecord(info))
		}
	}

	for _, info := range store.AllAvailable() {
		snap.Outpoints = append(snap.Outpoints, outpointToRecord(info))
	}
	for _, info := range store.Pending() {
		snap.PendingOutpoints = append(snap.PendingOutpoints, outpointToRecord(info))
	}

	if channels != nil {
		for _, pc := range channels.OpenChannels() {
			snap.SenderPaymentCodeAddresses[pc] = channels.SentAddresses(pc)
		}
	}

	return snap
}

// Marshal renders snap as canonical JSON.
func Marshal(snap *Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Restore validates and rebuilds the wallet's in-memory state from
// serialized snapshot JSON (spec §4.8 deserialization). The mnemonic
// adapter rebuilds the root key from the stored phrase; every BIP44
// entry must re-derive to its stored address, or restore aborts with
// walleterrors.ErrCorruptSnapshot.
func Restore(crypto qicrypto.Crypto, registry *zone.Registry, mn mnemonic.Mnemonic, passphrase string, data []byte) (*bip32.Node, *addressbook.Book, *utxostore.Store, *paymentchannel.Manager, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("invalid json: %v", err)
	}

	if snap.Version != CurrentVersion {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("unsupported version %d", snap.Version)
	}
	if snap.CoinType != models.QiCoinType {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("unexpected coin_type %d", snap.CoinType)
	}

	seed, err := mn.ToSeed(snap.MnemonicPhrase, passphrase)
	if err != nil {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("rebuild seed: %v", err)
	}
	root, err := bip32.NewMasterNode(crypto, seed)
	if err != nil {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("rebuild root: %v", err)
	}

	book := addressbook.New(crypto, registry)
	for _, rec := range snap.Addresses {
		info, err := recordToAddress(rec)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if info.Kind().IsBIP44() {
			if err := verifyBIP44Rederivation(crypto, registry, root, info); err != nil {
				return nil, nil, nil, nil, err
			}
		}
		if err := book.Put(info); err != nil {
			return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("duplicate address %s: %v", info.Address, err)
		}
	}

	store := utxostore.New(book)
	available, err := recordsToOutpoints(snap.Outpoints)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := store.ImportOutpoints(available); err != nil {
		return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("restore outpoints: %v", err)
	}

	pending, err := recordsToOutpoints(snap.PendingOutpoints)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(pending) > 0 {
		pendingKeys := make([]models.Outpoint, len(pending))
		for i, p := range pending {
			pendingKeys[i] = p.Outpoint
		}
		if err := store.ImportOutpoints(pending); err != nil {
			return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("restore pending outpoints: %v", err)
		}
		if err := store.MoveToPending(pendingKeys); err != nil {
			return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("move restored outpoints to pending: %v", err)
		}
	}

	channels := paymentchannel.New(crypto, registry, book, root)
	for pc, addrs := range snap.SenderPaymentCodeAddresses {
		if err := channels.RestoreSentAddresses(pc, addrs); err != nil {
			return nil, nil, nil, nil, walleterrors.CorruptSnapshotf("restore payment channel %s: %v", pc, err)
		}
	}

	return root, book, store, channels, nil
}

func addressToRecord(info *models.AddressInfo) AddressRecord {
	rec := AddressRecord{
		Address:        info.Address,
		PubKey:         hex.EncodeToString(info.PubKey),
		Account:        info.Account,
		Index:          info.Index,
		Zone:           string(info.Zone),
		Change:         info.Change,
		Status:         string(info.Status),
		DerivationPath: info.DerivationPath,
	}
	if info.LastSyncedBlock != nil {
		rec.LastSyncedBlockHash = info.LastSyncedBlock.Hash
		rec.LastSyncedBlockNumber = info.LastSyncedBlock.Number
	}
	if info.Kind() == models.PathKindImported {
		rec.ImportedSecret = hex.EncodeToString(info.ImportedSecret)
	}
	return rec
}

var allowedStatuses = map[string]bool{
	string(models.StatusUnused):       true,
	string(models.StatusUsed):         true,
	string(models.StatusAttemptedUse): true,
	string(models.StatusUnknown):      true,
}

func recordToAddress(rec AddressRecord) (*models.AddressInfo, error) {
	addr := models.NormalizeAddress(rec.Address)
	if len(addr) != 42 {
		return nil, walleterrors.CorruptSnapshotf("address %q is not 20-byte hex", rec.Address)
	}
	pubKey, err := hex.DecodeString(rec.PubKey)
	if err != nil || len(pubKey) != 33 {
		return nil, walleterrors.CorruptSnapshotf("address %s: pubkey is not 33-byte hex", addr)
	}
	if rec.Account >= 1<<31 {
		return nil, walleterrors.CorruptSnapshotf("address %s: account out of range", addr)
	}
	if rec.Index < -1 {
		return nil, walleterrors.CorruptSnapshotf("address %s: index out of range", addr)
	}
	z := models.Zone(rec.Zone)
	if !z.Valid() {
		return nil, walleterrors.CorruptSnapshotf("address %s: unknown zone %q", addr, rec.Zone)
	}
	if !allowedStatuses[rec.Status] {
		return nil, walleterrors.CorruptSnapshotf("address %s: unknown status %q", addr, rec.Status)
	}

	info := &models.AddressInfo{
		Address:        addr,
		PubKey:         pubKey,
		Account:        rec.Account,
		Index:          rec.Index,
		Zone:           z,
		Change:         rec.Change,
		Status:         models.AddressStatus(rec.Status),
		DerivationPath: rec.DerivationPath,
	}
	if rec.LastSyncedBlockHash != "" {
		info.LastSyncedBlock = &models.BlockRef{Hash: rec.LastSyncedBlockHash, Number: rec.LastSyncedBlockNumber}
	}
	if info.Kind() == models.PathKindImported {
		secret, err := hex.DecodeString(rec.ImportedSecret)
		if err != nil {
			return nil, walleterrors.CorruptSnapshotf("address %s: invalid imported_secret hex", addr)
		}
		info.ImportedSecret = secret
	}
	if info.Kind() == models.PathKindBIP47 {
		if _, err := bip47.Parse(rec.DerivationPath); err != nil {
			return nil, walleterrors.CorruptSnapshotf("invalid payment-code derivation path %q: %v", rec.DerivationPath, err)
		}
	}
	return info, nil
}

// verifyBIP44Rederivation re-walks a BIP44 entry's path from root and
// confirms it reproduces the stored address and pubkey (spec §4.8:
// "mismatch aborts with CorruptSnapshot").
func verifyBIP44Rederivation(crypto qicrypto.Crypto, registry *zone.Registry, root *bip32.Node, info *models.AddressInfo) error {
	path := keyderivation.AddressPath(info.Account, info.Kind() == models.PathKindBIP44Change, uint32(info.Index))
	node, err := bip32.DerivePath(root, path)
	if err != nil {
		return walleterrors.CorruptSnapshotf("address %s: re-derive %s: %v", info.Address, path, err)
	}

	addr := keyderivation.AddressOf(crypto, node.PublicKey())
	if keyderivation.AddressHex(addr) != info.Address {
		return walleterrors.CorruptSnapshotf("address %s: re-derivation mismatch", info.Address)
	}
	if !registry.InZone(addr[:], info.Zone) {
		return walleterrors.CorruptSnapshotf("address %s: re-derivation does not match stored zone %s", info.Address, info.Zone)
	}
	return nil
}

func outpointToRecord(info models.OutpointInfo) OutpointRecord {
	return OutpointRecord{
		TxHash:         info.Outpoint.TxHash,
		Index:          info.Outpoint.Index,
		Denomination:   info.Outpoint.Denomination,
		Lock:           info.Outpoint.Lock,
		Address:        info.Address,
		Zone:           string(info.Zone),
		Account:        info.Account,
		DerivationPath: info.DerivationPath,
	}
}

func recordsToOutpoints(records []OutpointRecord) ([]models.OutpointInfo, error) {
	out := make([]models.OutpointInfo, 0, len(records))
	for _, rec := range records {
		if int(rec.Denomination) >= len(models.DenominationTable) {
			return nil, walleterrors.CorruptSnapshotf("outpoint %s:%d has invalid denomination %d", rec.TxHash, rec.Index, rec.Denomination)
		}
		z := models.Zone(rec.Zone)
		if !z.Valid() {
			return nil, walleterrors.CorruptSnapshotf("outpoint %s:%d: unknown zone %q", rec.TxHash, rec.Index, rec.Zone)
		}
		out = append(out, models.OutpointInfo{
			Outpoint: models.Outpoint{
				TxHash:       rec.TxHash,
				Index:        rec.Index,
				Denomination: rec.Denomination,
				Lock:         rec.Lock,
			},
			Address:        models.NormalizeAddress(rec.Address),
			Zone:           z,
			Account:        rec.Account,
			DerivationPath: rec.DerivationPath,
		})
	}
	return out, nil
}
