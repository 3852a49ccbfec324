// Package scanner implements the Scanner/Syncer (spec §4.5): full
// rediscovery (Scan) and incremental delta sync (Sync) of an
// address/outpoint set for one (zone, account), including gap-limit
// address discovery across BIP44 external/change paths and every open
// BIP47 receive channel.
package scanner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip47"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/provider"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// DefaultGapLimit is the trailing-run-of-unused threshold gap-limit
// extension stops at (spec §4.5 step 5: "default 5").
const DefaultGapLimit = 5

// DefaultUnsyncedBatchSize bounds how many unsynced addresses are
// queried per GetOutpointsByAddress round (spec §4.5 step 4:
// "implementation-chosen size").
const DefaultUnsyncedBatchSize = 25

// Sink receives the accumulated created/deleted outpoint deltas from one
// Sync call (spec §9 DESIGN NOTES: "Callback-based sync notifications →
// explicit sink objects... the core never calls user code synchronously
// while holding wallet state it still needs" — Scanner invokes Sink only
// after releasing its internal locks).
type Sink interface {
	OnCreated(outpoints []models.OutpointInfo)
	OnDeleted(outpoints []models.OutpointInfo)
}

// AddressUseChecker optionally classifies an address as used even when
// the node reports no outpoints for it (spec §4.5: "to honor records of
// one-time send-addresses the node cannot see").
type AddressUseChecker func(address string) (bool, error)

// Scanner drives scan/sync for one wallet's addressbook+utxostore
// against a Provider.
type Scanner struct {
	crypto   qicrypto.Crypto
	registry *zone.Registry
	book     *addressbook.Book
	store    *utxostore.Store
	prov     provider.Provider
	root     *bip32.Node

	gapLimit  uint32
	batchSize int
	useChecker AddressUseChecker
}

// Option configures optional Scanner behavior.
type Option func(*Scanner)

// WithGapLimit overrides DefaultGapLimit.
func WithGapLimit(g uint32) Option {
	return func(s *Scanner) { s.gapLimit = g }
}

// WithUnsyncedBatchSize overrides DefaultUnsyncedBatchSize.
func WithUnsyncedBatchSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithAddressUseChecker installs an AddressUseChecker hook.
func WithAddressUseChecker(f AddressUseChecker) Option {
	return func(s *Scanner) { s.useChecker = f }
}

// New constructs a Scanner. root is the wallet's master BIP32 node, used
// to re-derive gap-limit candidates.
func New(crypto qicrypto.Crypto, registry *zone.Registry, book *addressbook.Book, store *utxostore.Store, prov provider.Provider, root *bip32.Node, opts ...Option) *Scanner {
	s := &Scanner{
		crypto:    crypto,
		registry:  registry,
		book:      book,
		store:     store,
		prov:      prov,
		root:      root,
		gapLimit:  DefaultGapLimit,
		batchSize: DefaultUnsyncedBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan implements spec §4.5 scan(zone, account): forgets local outpoints
// in z, marks every AddressInfo for z as UNKNOWN, clears
// last_synced_block, then performs the same algorithm as Sync.
func (s *Scanner) Scan(ctx context.Context, z models.Zone, account uint32, sink Sink) error {
	s.store.ResetZone(z)
	s.book.ResetZone(z)
	return s.run(ctx, z, account, sink)
}

// Sync implements spec §4.5 sync(zone, account, sink): incremental
// update; never resets existing state.
func (s *Scanner) Sync(ctx context.Context, z models.Zone, account uint32, sink Sink) error {
	return s.run(ctx, z, account, sink)
}

func (s *Scanner) run(ctx context.Context, z models.Zone, account uint32, sink Sink) error {
	tip, err := s.prov.GetBlock(ctx, z, "latest")
	if err != nil {
		return fmt.Errorf("fetch tip for zone %s: %w", z, err)
	}

	entries := s.addressesFor(z, account)

	var synced, unsynced []*models.AddressInfo
	for _, info := range entries {
		if info.LastSyncedBlock != nil {
			synced = append(synced, info)
		} else {
			unsynced = append(unsynced, info)
		}
	}

	var created, deleted []models.OutpointInfo

	c, d, err := s.syncSynced(ctx, z, synced, tip)
	if err != nil {
		return err
	}
	created = append(created, c...)
	deleted = append(deleted, d...)

	c, err = s.syncUnsynced(ctx, z, unsynced, tip)
	if err != nil {
		return err
	}
	created = append(created, c...)

	c, err = s.extendGapLimit(ctx, z, account, tip)
	if err != nil {
		return err
	}
	created = append(created, c...)

	if sink != nil {
		invokeSink(sink, created, deleted)
	}

	if err := s.store.ReconcilePending(z, func(addr string) ([]models.Outpoint, error) {
		return s.prov.GetOutpointsByAddress(ctx, addr)
	}); err != nil {
		return fmt.Errorf("reconcile pending for zone %s: %w", z, err)
	}

	return nil
}

// invokeSink calls sink outside of any wallet-state lock, recovering and
// logging a panic rather than letting it escape (spec §4.5 step 6:
// "Callback exceptions are caught and logged; they do not fail the sync").
func invokeSink(sink Sink, created, deleted []models.OutpointInfo) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("scanner: sync sink panicked: %v", r)
		}
	}()
	if len(created) > 0 {
		sink.OnCreated(created)
	}
	if len(deleted) > 0 {
		sink.OnDeleted(deleted)
	}
}

func (s *Scanner) addressesFor(z models.Zone, account uint32) []*models.AddressInfo {
	var out []*models.AddressInfo
	for _, info := range s.book.ListByZone(z) {
		if info.Account == account || info.Kind() == models.PathKindImported {
			out = append(out, info)
		}
	}
	return out
}

// syncSynced implements step 3: group synced addresses by
// last_synced_block.hash, fetch deltas per group, apply created/deleted.
func (s *Scanner) syncSynced(ctx context.Context, z models.Zone, synced []*models.AddressInfo, tip models.BlockRef) ([]models.OutpointInfo, []models.OutpointInfo, error) {
	groups := make(map[string][]*models.AddressInfo)
	for _, info := range synced {
		groups[info.LastSyncedBlock.Hash] = append(groups[info.LastSyncedBlock.Hash], info)
	}

	var created, deleted []models.OutpointInfo
	for groupHash, infos := range groups {
		addrs := make([]string, len(infos))
		byAddr := make(map[string]*models.AddressInfo, len(infos))
		for i, info := range infos {
			addrs[i] = info.Address
			byAddr[info.Address] = info
		}

		deltas, err := s.prov.GetOutpointDeltas(ctx, z, addrs, groupHash)
		if err != nil {
			return nil, nil, fmt.Errorf("get outpoint deltas for zone %s: %w", z, err)
		}

		for addr, delta := range deltas {
			info := byAddr[addr]
			if info == nil {
				continue
			}

			if len(delta.Created) > 0 {
				entries := outpointInfosFor(info, delta.Created)
				if err := s.store.ImportOutpoints(entries); err != nil {
					return nil, nil, err
				}
				created = append(created, entries...)
			}
			for _, o := range delta.Deleted {
				s.store.Remove(o.Key())
				deleted = append(deleted, models.OutpointInfo{Outpoint: o, Address: info.Address, Zone: z})
			}

			if err := s.book.SetLastSyncedBlock(info.Address, &models.BlockRef{Hash: tip.Hash, Number: tip.Number}); err != nil {
				return nil, nil, err
			}
		}
	}
	return created, deleted, nil
}

// syncUnsynced implements step 4: batch-query GetOutpointsByAddress for
// addresses with no last_synced_block yet.
func (s *Scanner) syncUnsynced(ctx context.Context, z models.Zone, unsynced []*models.AddressInfo, tip models.BlockRef) ([]models.OutpointInfo, error) {
	var created []models.OutpointInfo

	for start := 0; start < len(unsynced); start += s.batchSize {
		end := start + s.batchSize
		if end > len(unsynced) {
			end = len(unsynced)
		}
		batch := unsynced[start:end]

		for _, info := range batch {
			used, entries, err := s.classifyUnsynced(ctx, info, z)
			if err != nil {
				return nil, err
			}

			status := models.StatusUnused
			if used {
				status = models.StatusUsed
			}
			if err := s.book.SetStatus(info.Address, status); err != nil {
				return nil, err
			}
			if err := s.book.SetLastSyncedBlock(info.Address, &models.BlockRef{Hash: tip.Hash, Number: tip.Number}); err != nil {
				return nil, err
			}
			if len(entries) > 0 {
				if err := s.store.ImportOutpoints(entries); err != nil {
					return nil, err
				}
				created = append(created, entries...)
			}
		}
	}
	return created, nil
}

func (s *Scanner) classifyUnsynced(ctx context.Context, info *models.AddressInfo, z models.Zone) (bool, []models.OutpointInfo, error) {
	outpoints, err := s.prov.GetOutpointsByAddress(ctx, info.Address)
	if err != nil {
		return false, nil, fmt.Errorf("get outpoints for %s: %w", info.Address, err)
	}

	if len(outpoints) > 0 {
		return true, outpointInfosFor(info, outpoints), nil
	}

	if s.useChecker != nil {
		used, err := s.useChecker(info.Address)
		if err != nil {
			log.Printf("scanner: address use checker failed for %s: %v", info.Address, err)
		} else if used {
			return true, nil, nil
		}
	}
	return false, nil, nil
}

func outpointInfosFor(info *models.AddressInfo, outpoints []models.Outpoint) []models.OutpointInfo {
	out := make([]models.OutpointInfo, len(outpoints))
	account := info.Account
	path := info.DerivationPath
	for i, o := range outpoints {
		out[i] = models.OutpointInfo{
			Outpoint:       o,
			Address:        info.Address,
			Zone:           info.Zone,
			Account:        &account,
			DerivationPath: &path,
		}
	}
	return out
}

// extendGapLimit implements step 5: independently extend
// "BIP44:external", "BIP44:change", and every open payment-code receive
// channel until each has a trailing run of gapLimit UNUSED addresses.
func (s *Scanner) extendGapLimit(ctx context.Context, z models.Zone, account uint32, tip models.BlockRef) ([]models.OutpointInfo, error) {
	var created []models.OutpointInfo

	start := time.Now()
	metrics := models.NewDerivationMetrics()

	extend := func(path string, next func(startIndex uint32) (*models.AddressInfo, qicrypto.PrivateKey, error)) error {
		entries := s.filterPath(s.book.ListByPath(path), z, account)
		run := trailingUnusedRun(entries)
		nextIndex := uint32(0)
		if len(entries) > 0 {
			nextIndex = uint32(entries[len(entries)-1].Index) + 1
		}
		pm := metrics.Path(path)

		for run < s.gapLimit {
			callStart := nextIndex
			info, _, err := next(nextIndex)
			if err != nil {
				return fmt.Errorf("extend gap limit for path %q: %w", path, err)
			}

			// info.Index is the index the candidate was actually accepted
			// at; every index between callStart and info.Index was tried
			// and rejected for wrong zone or non-Qi (spec §4.1 retry
			// policy) before this one was accepted.
			attempts := int(uint32(info.Index)-callStart) + 1
			pm.Attempts += attempts
			pm.SkippedZone += attempts - 1
			pm.Derived++

			if err := s.book.Put(info); err != nil {
				return err
			}

			c, err := s.classifyAndSync(ctx, info, tip)
			if err != nil {
				return err
			}
			created = append(created, c...)

			if info.Status == models.StatusUsed {
				run = 0
			} else {
				run++
			}
			nextIndex = uint32(info.Index) + 1
		}
		return nil
	}

	accountNode, err := bip32.DerivePath(s.root, keyderivation.AccountPath(account))
	if err != nil {
		return nil, fmt.Errorf("derive account node: %w", err)
	}

	if err := extend(models.PathBIP44External, func(startIndex uint32) (*models.AddressInfo, qicrypto.PrivateKey, error) {
		info, err := keyderivation.DeriveNextQiAddress(s.crypto, s.registry, s.root, account, z, false, startIndex)
		return info, nil, err
	}); err != nil {
		return nil, err
	}

	if err := extend(models.PathBIP44Change, func(startIndex uint32) (*models.AddressInfo, qicrypto.PrivateKey, error) {
		info, err := keyderivation.DeriveNextQiAddress(s.crypto, s.registry, s.root, account, z, true, startIndex)
		return info, nil, err
	}); err != nil {
		return nil, err
	}

	for _, path := range s.book.Paths() {
		if models.ClassifyPath(path) != models.PathKindBIP47 {
			continue
		}
		counterparty, err := bip47.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parse payment-code path %q: %w", path, err)
		}
		if err := extend(path, func(startIndex uint32) (*models.AddressInfo, qicrypto.PrivateKey, error) {
			return keyderivation.DeriveNextPaymentAddress(s.crypto, s.registry, accountNode, counterparty, account, z, bip47.RoleReceive, startIndex)
		}); err != nil {
			return nil, err
		}
	}

	metrics.TotalDuration = time.Since(start)
	for path, pm := range metrics.PerPath {
		if pm.Attempts == 0 {
			continue
		}
		log.Printf("scanner: gap-limit extension for %s/%d path %q: derived=%d skipped_zone=%d attempts=%d duration=%s",
			z, account, path, pm.Derived, pm.SkippedZone, pm.Attempts, metrics.TotalDuration)
	}

	return created, nil
}

func (s *Scanner) filterPath(entries []*models.AddressInfo, z models.Zone, account uint32) []*models.AddressInfo {
	var out []*models.AddressInfo
	for _, info := range entries {
		if info.Zone == z && info.Account == account {
			out = append(out, info)
		}
	}
	return out
}

func trailingUnusedRun(entries []*models.AddressInfo) uint32 {
	var run uint32
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Status != models.StatusUnused {
			break
		}
		run++
	}
	return run
}

// classifyAndSync queries the node for a freshly derived gap-limit
// candidate and applies the same USED/UNUSED classification as
// syncUnsynced, in place (info is not yet in the book's canonical slot
// when this runs, so status is mutated on the pointer Put just stored).
func (s *Scanner) classifyAndSync(ctx context.Context, info *models.AddressInfo, tip models.BlockRef) ([]models.OutpointInfo, error) {
	used, entries, err := s.classifyUnsynced(ctx, info, info.Zone)
	if err != nil {
		return nil, err
	}

	status := models.StatusUnused
	if used {
		status = models.StatusUsed
	}
	if err := s.book.SetStatus(info.Address, status); err != nil {
		return nil, err
	}
	if err := s.book.SetLastSyncedBlock(info.Address, &models.BlockRef{Hash: tip.Hash, Number: tip.Number}); err != nil {
		return nil, err
	}
	info.Status = status

	if len(entries) > 0 {
		if err := s.store.ImportOutpoints(entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
