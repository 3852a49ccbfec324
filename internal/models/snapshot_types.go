package models

// Snapshot is a JSON-tagged shape of the persistable wallet state (spec
// §4.8, §6). The snapshot package does not use it: Export, Marshal and
// Restore read and write that package's own Snapshot and AddressRecord
// types.
//
// Mnemonic-at-rest encryption (the teacher's EncryptedMnemonic +
// Argon2id/AES-GCM pair this file used to hold) is out of scope here —
// spec Non-goals exclude keystore encryption, and §4.8 defines the
// snapshot as plain JSON carrying the phrase itself.
type Snapshot struct {
	Version  int    `json:"version"`
	CoinType uint32 `json:"coin_type"`
	Mnemonic string `json:"mnemonic_phrase"`

	Addresses          []SnapshotAddress            `json:"addresses"`
	Outpoints          []OutpointInfo                `json:"outpoints"`
	PendingOutpoints   []OutpointInfo                `json:"pending_outpoints"`
	SenderPCAddresses  map[string][]SnapshotAddress  `json:"sender_payment_code_addresses"`
}

// SnapshotAddress is the wire form of AddressInfo: hex-encoded binary
// fields and a plain status string, per spec §4.8's validation rules
// (address 40-hex, pubkey 66-hex).
type SnapshotAddress struct {
	Address        string  `json:"address"`
	PubKey         string  `json:"pubkey"`
	Account        uint32  `json:"account"`
	Index          int64   `json:"index"`
	Zone           string  `json:"zone"`
	Change         bool    `json:"change"`
	Status         string  `json:"status"`
	DerivationPath string  `json:"derivation_path"`
	LastSyncedHash *string `json:"last_synced_block_hash,omitempty"`
	LastSyncedNum  *uint64 `json:"last_synced_block_number,omitempty"`
	ImportedSecret string  `json:"imported_secret,omitempty"` // hex, imported entries only
}
