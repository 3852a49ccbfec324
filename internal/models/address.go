package models

import (
	"strings"
)

// Well-known derivation-path forms. BIP47 receive paths are the
// counterparty's payment code string itself rather than one of these
// constants; ImportedPath is the sentinel used for raw imported keys.
const (
	PathBIP44External = "BIP44:external"
	PathBIP44Change   = "BIP44:change"
	ImportedPath      = "privateKeys"
)

// PathKind classifies a DerivationPath string into the tagged variant
// DESIGN NOTES §9 calls for ("a tagged variant AddressInfo { BIP44 |
// BIP47 | Imported }"), factored out of the raw string so callers never
// have to string-compare derivation paths themselves.
type PathKind int

const (
	PathKindBIP44External PathKind = iota
	PathKindBIP44Change
	PathKindBIP47
	PathKindImported
)

// ClassifyPath returns the PathKind for a raw derivation_path value.
func ClassifyPath(path string) PathKind {
	switch path {
	case PathBIP44External:
		return PathKindBIP44External
	case PathBIP44Change:
		return PathKindBIP44Change
	case ImportedPath:
		return PathKindImported
	default:
		return PathKindBIP47
	}
}

// IsBIP44 reports whether k is one of the two BIP44 path kinds.
func (k PathKind) IsBIP44() bool {
	return k == PathKindBIP44External || k == PathKindBIP44Change
}

// AddressInfo is the single address record kind in the Qi ledger (spec
// §3). Common fields are factored out; DerivationPath selects which of
// the three variants (BIP44 external/change, BIP47 receive channel, or
// imported private key) the entry belongs to.
type AddressInfo struct {
	Address string // 20-byte address, 0x-prefixed lowercase hex
	PubKey  []byte // 33-byte compressed public key
	Account uint32
	Index   int64 // -1 for imported-private-key entries
	Zone    Zone
	Change  bool // meaningful only for BIP44 entries
	Status  AddressStatus

	// DerivationPath is one of PathBIP44External, PathBIP44Change, a
	// BIP47 counterparty payment code, or ImportedPath.
	DerivationPath string

	// LastSyncedBlock is nil until the address has been synced once.
	LastSyncedBlock *BlockRef

	// ImportedSecret holds the raw private key bytes for PathKindImported
	// entries only (spec §3: "derivation_path stores the raw
	// private-key bytes" — kept as a distinct field rather than
	// overloading DerivationPath's string type with binary data).
	ImportedSecret []byte
}

// Kind classifies this entry's derivation path.
func (a *AddressInfo) Kind() PathKind {
	return ClassifyPath(a.DerivationPath)
}

// CounterpartyPaymentCode returns the BIP47 payment code this entry was
// derived against, valid only when Kind() == PathKindBIP47.
func (a *AddressInfo) CounterpartyPaymentCode() string {
	if a.Kind() != PathKindBIP47 {
		return ""
	}
	return a.DerivationPath
}

// NormalizeAddress lowercases and ensures the 0x prefix spec §6 requires
// for the canonical (non-checksummed) address form.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}
