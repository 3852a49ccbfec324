// Package utxostore is the live UTXO set (spec §4.3): available and
// pending outpoints, and the bookkeeping needed to compute spendable
// and locked balances per zone.
package utxostore

import (
	"fmt"
	"sync"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

// Store holds the wallet's outpoint state. Like addressbook.Book it is
// logically single-writer; callers serialize scan/sync/send against one
// instance (spec §5).
type Store struct {
	mu sync.RWMutex

	available map[models.OutpointKey]models.OutpointInfo
	pending   map[models.OutpointKey]models.OutpointInfo

	// lastDerivationIndex[zone][account] tracks the highest derived
	// BIP44 index, per spec §3 ("bookkeeping for monotonic derivation").
	lastDerivationIndex map[models.Zone]map[uint32]uint32

	book *addressbook.Book
}

// New constructs an empty store backed by book for address-existence
// validation (spec §4.3: "validates each entry's referenced address exists").
func New(book *addressbook.Book) *Store {
	return &Store{
		available:           make(map[models.OutpointKey]models.OutpointInfo),
		pending:              make(map[models.OutpointKey]models.OutpointInfo),
		lastDerivationIndex: make(map[models.Zone]map[uint32]uint32),
		book:                 book,
	}
}

// ImportOutpoints validates and stores each entry into available,
// transitioning its owning address to USED. Re-importing an outpoint
// already present (by txhash,index) is an idempotent no-op (spec §4.3,
// §8 "import_outpoints(L); import_outpoints(L) ≡ import_outpoints(L)").
func (s *Store) ImportOutpoints(entries []models.OutpointInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if entry.Outpoint.TxHash == "" {
			return fmt.Errorf("outpoint missing txhash")
		}
		if int(entry.Outpoint.Denomination) >= len(models.DenominationTable) {
			return fmt.Errorf("outpoint %s:%d has invalid denomination %d", entry.Outpoint.TxHash, entry.Outpoint.Index, entry.Outpoint.Denomination)
		}

		owner, err := s.book.GetByAddress(entry.Address)
		if err != nil {
			return err
		}
		if owner.Zone != entry.Zone {
			return fmt.Errorf("%w: outpoint zone %s does not match address zone %s", walleterrors.ErrInvalidZone, entry.Zone, owner.Zone)
		}

		key := entry.Outpoint.Key()
		if _, exists := s.available[key]; exists {
			continue
		}
		if _, exists := s.pending[key]; exists {
			continue
		}

		s.available[key] = entry
		if err := s.book.SetStatus(entry.Address, models.StatusUsed); err != nil {
			return err
		}
	}
	return nil
}

// MoveToPending moves inputs (identified by their Outpoint) from
// available to pending, called when a signed transaction using them is
// broadcast (spec §4.3). Every input must currently be available.
func (s *Store) MoveToPending(inputs []models.Outpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range inputs {
		key := in.Key()
		if _, ok := s.available[key]; !ok {
			return fmt.Errorf("outpoint %s:%d is not available", in.TxHash, in.Index)
		}
	}
	for _, in := range inputs {
		key := in.Key()
		info := s.available[key]
		delete(s.available, key)
		s.pending[key] = info
	}
	return nil
}

// AddressOutpointsQuery answers "what outpoints does the node currently
// list for this address", the single adapter call reconcile_pending
// needs per pending outpoint's address (spec §4.3).
type AddressOutpointsQuery func(address string) ([]models.Outpoint, error)

// ReconcilePending resolves every pending outpoint in zone z: if the
// node no longer lists it among its owning address's outpoints, it is
// confirmed-spent and dropped; otherwise it returns to available (spec
// §4.3, the sole recovery path for a broadcast that never confirms).
func (s *Store) ReconcilePending(z models.Zone, query AddressOutpointsQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addressOutpoints := make(map[string]map[models.OutpointKey]struct{})

	for key, info := range s.pending {
		if info.Zone != z {
			continue
		}

		seen, ok := addressOutpoints[info.Address]
		if !ok {
			live, err := query(info.Address)
			if err != nil {
				return err
			}
			seen = make(map[models.OutpointKey]struct{}, len(live))
			for _, o := range live {
				seen[o.Key()] = struct{}{}
			}
			addressOutpoints[info.Address] = seen
		}

		if _, stillLive := seen[key]; stillLive {
			delete(s.pending, key)
			s.available[key] = info
		} else {
			delete(s.pending, key)
		}
	}
	return nil
}

// SpendableFor sums D[d] over available outpoints in zone z whose lock
// is 0 or has already passed blockNumber (spec §4.3 spendable_for).
func (s *Store) SpendableFor(z models.Zone, blockNumber uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, info := range s.available {
		if info.Zone != z {
			continue
		}
		if info.Outpoint.Lock == 0 || info.Outpoint.Lock <= blockNumber {
			total += info.Outpoint.Value()
		}
	}
	return total
}

// LockedFor sums D[d] over available outpoints in zone z whose lock has
// not yet passed blockNumber (spec §4.3 locked_for).
func (s *Store) LockedFor(z models.Zone, blockNumber uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, info := range s.available {
		if info.Zone != z {
			continue
		}
		if info.Outpoint.Lock != 0 && info.Outpoint.Lock > blockNumber {
			total += info.Outpoint.Value()
		}
	}
	return total
}

// SpendableOutpoints returns every available OutpointInfo in zone z
// usable as a coin-selection candidate at blockNumber (unlocked).
func (s *Store) SpendableOutpoints(z models.Zone, blockNumber uint64) []models.OutpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.OutpointInfo
	for _, info := range s.available {
		if info.Zone != z {
			continue
		}
		if info.Outpoint.Lock == 0 || info.Outpoint.Lock <= blockNumber {
			out = append(out, info)
		}
	}
	return out
}

// Remove deletes key from available (used when a delta sync reports it
// deleted/spent outside of the pending-reconciliation path).
func (s *Store) Remove(key models.OutpointKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.available, key)
}

// LastDerivationIndex returns the highest index derived for
// (zone, account); ok is false (and the index 0) if none is recorded yet.
func (s *Store) LastDerivationIndex(z models.Zone, account uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byAccount, ok := s.lastDerivationIndex[z]
	if !ok {
		return 0, false
	}
	idx, ok := byAccount[account]
	return idx, ok
}

// SetLastDerivationIndex records the highest index derived for
// (zone, account) if it exceeds what is already stored.
func (s *Store) SetLastDerivationIndex(z models.Zone, account uint32, index uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAccount, ok := s.lastDerivationIndex[z]
	if !ok {
		byAccount = make(map[uint32]uint32)
		s.lastDerivationIndex[z] = byAccount
	}
	if current, ok := byAccount[account]; !ok || index > current {
		byAccount[account] = index
	}
}

// Available returns a copy of every available OutpointInfo in zone z,
// locked or not.
func (s *Store) Available(z models.Zone) []models.OutpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.OutpointInfo
	for _, info := range s.available {
		if info.Zone == z {
			out = append(out, info)
		}
	}
	return out
}

// Pending returns a copy of every pending OutpointInfo, across all zones.
func (s *Store) Pending() []models.OutpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OutpointInfo, 0, len(s.pending))
	for _, info := range s.pending {
		out = append(out, info)
	}
	return out
}

// AllAvailable returns a copy of every available OutpointInfo, across
// all zones (used by snapshot export).
func (s *Store) AllAvailable() []models.OutpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OutpointInfo, 0, len(s.available))
	for _, info := range s.available {
		out = append(out, info)
	}
	return out
}

// ResetZone drops every available and pending outpoint in zone z,
// the first step of Scan's full rediscovery (spec §4.5).
func (s *Store) ResetZone(z models.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, info := range s.available {
		if info.Zone == z {
			delete(s.available, key)
		}
	}
	for key, info := range s.pending {
		if info.Zone == z {
			delete(s.pending, key)
		}
	}
}
