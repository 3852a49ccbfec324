// Package addressbook is the single source of truth for every derived
// or imported address (spec §4.2): a keyed collection of
// derivation_path → ordered list<AddressInfo>, plus a reverse index for
// O(1) address lookup. Outpoints and pending transactions reference
// addresses by string through this index rather than by pointer (spec
// §9: "outpoints store the address string, not a pointer").
package addressbook

import (
	"fmt"
	"sync"

	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// position locates one AddressInfo within the book's per-path lists.
type position struct {
	path  string
	index int
}

// Book is the address book. The zero value is not usable; construct
// with New. Book is logically single-writer (spec §5): callers must
// serialize scan/sync/send/snapshot calls against the same instance.
type Book struct {
	mu sync.RWMutex

	byPath    map[string][]*models.AddressInfo
	byAddress map[string]position

	crypto   qicrypto.Crypto
	registry *zone.Registry
}

// New constructs an empty address book.
func New(crypto qicrypto.Crypto, registry *zone.Registry) *Book {
	return &Book{
		byPath:    make(map[string][]*models.AddressInfo),
		byAddress: make(map[string]position),
		crypto:    crypto,
		registry:  registry,
	}
}

// Put appends info to its derivation path's list. Fails if the address
// is already present under any path (spec §4.2 invariant: "no two
// entries share address").
func (b *Book) Put(info *models.AddressInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := models.NormalizeAddress(info.Address)
	if _, exists := b.byAddress[addr]; exists {
		return fmt.Errorf("%w: %s", walleterrors.ErrAddressAlreadyImported, addr)
	}

	info.Address = addr
	path := info.DerivationPath
	b.byPath[path] = append(b.byPath[path], info)
	b.byAddress[addr] = position{path: path, index: len(b.byPath[path]) - 1}
	return nil
}

// GetByAddress returns the AddressInfo for addr, or
// walleterrors.ErrAddressNotFound.
func (b *Book) GetByAddress(addr string) (*models.AddressInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	addr = models.NormalizeAddress(addr)
	pos, ok := b.byAddress[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", walleterrors.ErrAddressNotFound, addr)
	}
	return b.byPath[pos.path][pos.index], nil
}

// ListByPath returns every AddressInfo under derivation path in
// derivation order. The returned slice is a fresh copy, but its entries
// point at the book's own records; change them through SetStatus and
// SetLastSyncedBlock, not by writing through the pointers.
func (b *Book) ListByPath(path string) []*models.AddressInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := b.byPath[path]
	out := make([]*models.AddressInfo, len(entries))
	copy(out, entries)
	return out
}

// ListByZone returns every AddressInfo across all paths belonging to z.
func (b *Book) ListByZone(z models.Zone) []*models.AddressInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*models.AddressInfo
	for _, entries := range b.byPath {
		for _, info := range entries {
			if info.Zone == z {
				out = append(out, info)
			}
		}
	}
	return out
}

// Paths returns every derivation path currently tracked, including
// BIP47 payment-code channels opened with no addresses yet.
func (b *Book) Paths() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.byPath))
	for path := range b.byPath {
		out = append(out, path)
	}
	return out
}

// EnsurePath registers path with an empty list if it is not already
// tracked, without appending any entry. Used by payment-channel
// open_channel to make a path scannable before any address exists on it.
func (b *Book) EnsurePath(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byPath[path]; !ok {
		b.byPath[path] = nil
	}
}

// LastUsedIndex returns the highest Index stored under path for
// (account, zone), or -1 if none exist yet.
func (b *Book) LastUsedIndex(path string, account uint32, z models.Zone) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	last := int64(-1)
	for _, info := range b.byPath[path] {
		if info.Account == account && info.Zone == z && info.Index > last {
			last = info.Index
		}
	}
	return last
}

// SetStatus transitions addr's status in place.
func (b *Book) SetStatus(addr string, status models.AddressStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr = models.NormalizeAddress(addr)
	pos, ok := b.byAddress[addr]
	if !ok {
		return fmt.Errorf("%w: %s", walleterrors.ErrAddressNotFound, addr)
	}
	b.byPath[pos.path][pos.index].Status = status
	return nil
}

// SetLastSyncedBlock records the block an address was last synced
// against, or clears it when ref is nil (used by Scan's full reset).
func (b *Book) SetLastSyncedBlock(addr string, ref *models.BlockRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr = models.NormalizeAddress(addr)
	pos, ok := b.byAddress[addr]
	if !ok {
		return fmt.Errorf("%w: %s", walleterrors.ErrAddressNotFound, addr)
	}
	b.byPath[pos.path][pos.index].LastSyncedBlock = ref
	return nil
}

// ResetZone marks every AddressInfo in zone z as UNKNOWN and clears
// LastSyncedBlock, the reset scan() performs before full rediscovery
// (spec §4.5).
func (b *Book) ResetZone(z models.Zone) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entries := range b.byPath {
		for _, info := range entries {
			if info.Zone == z {
				info.Status = models.StatusUnknown
				info.LastSyncedBlock = nil
			}
		}
	}
}

// ImportPrivateKey parses raw as a 32-byte secp256k1 scalar, computes
// its address, verifies the Qi+zone predicate, and stores it under the
// sentinel ImportedPath with Index -1 (spec §4.2 import_private_key).
func (b *Book) ImportPrivateKey(raw []byte, z models.Zone) (*models.AddressInfo, error) {
	priv, err := b.crypto.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse imported private key: %w", err)
	}

	addr := keyderivation.AddressOf(b.crypto, priv.PubKey())
	if !keyderivation.IsQiAddress(addr) {
		return nil, fmt.Errorf("%w: imported key does not derive a Qi address", walleterrors.ErrInvalidAddress)
	}
	if !b.registry.InZone(addr[:], z) {
		return nil, fmt.Errorf("%w: imported key's address is not in zone %s", walleterrors.ErrInvalidZone, z)
	}

	info := &models.AddressInfo{
		Address:        keyderivation.AddressHex(addr),
		PubKey:         priv.PubKey().Compressed(),
		Index:          -1,
		Zone:           z,
		Status:         models.StatusUnused,
		DerivationPath: models.ImportedPath,
		ImportedSecret: append([]byte(nil), raw...),
	}

	if err := b.Put(info); err != nil {
		return nil, err
	}
	return info, nil
}
