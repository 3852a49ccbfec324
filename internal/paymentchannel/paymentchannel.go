// Package paymentchannel implements the Payment Channels module (spec
// §4.9): opening a BIP47 channel with a counterparty payment code, and
// deriving receive addresses (scanned, spendable, stored in the address
// book under the channel's path) and send addresses (one-time,
// never scanned, never spendable, tracked only by this package).
package paymentchannel

import (
	"fmt"
	"sync"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip47"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// AddressUseChecker optionally flags an address as already used by a
// prior send when the node itself cannot see it (one-time send
// addresses are never broadcast to, and never scanned).
type AddressUseChecker func(address string) (bool, error)

type channelKey struct {
	zone    models.Zone
	account uint32
}

type channel struct {
	counterparty *bip47.PaymentCode

	nextReceiveIndex map[channelKey]uint32
	nextSendIndex    map[channelKey]uint32

	// sentAddresses records every send-address generated on this
	// channel so far, in generation order — the snapshot's
	// sender_payment_code_addresses record (spec §4.8) for this
	// counterparty. It plays no role in NextSendAddress's own
	// skip-if-used decision (that is solely the caller's
	// AddressUseChecker, per spec §4.7 step 3); it exists only so a
	// snapshot export/restore round-trip can recover this bookkeeping.
	sentAddresses []string
}

// Manager owns every open payment channel's send/receive index state.
type Manager struct {
	mu sync.Mutex

	crypto   qicrypto.Crypto
	registry *zone.Registry
	book     *addressbook.Book
	root     *bip32.Node

	channels map[string]*channel // keyed by payment-code string
}

// New constructs an empty Manager.
func New(crypto qicrypto.Crypto, registry *zone.Registry, book *addressbook.Book, root *bip32.Node) *Manager {
	return &Manager{
		crypto:   crypto,
		registry: registry,
		book:     book,
		root:     root,
		channels: make(map[string]*channel),
	}
}

// OpenChannel adds an empty receive/send bucket for pc. Idempotent (spec
// §4.9, §8: "open_channel(pc); open_channel(pc) ≡ open_channel(pc)").
func (m *Manager) OpenChannel(pc string) error {
	counterparty, err := bip47.Parse(pc)
	if err != nil {
		return fmt.Errorf("parse payment code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[pc]; exists {
		return nil
	}
	m.channels[pc] = &channel{
		counterparty:     counterparty,
		nextReceiveIndex: make(map[channelKey]uint32),
		nextSendIndex:    make(map[channelKey]uint32),
	}
	m.book.EnsurePath(pc)
	return nil
}

func (m *Manager) channelFor(pc string) (*channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[pc]
	if !ok {
		return nil, fmt.Errorf("%w: channel %q is not open", walleterrors.ErrInvalidPaymentCode, pc)
	}
	return ch, nil
}

// NextReceiveAddress derives the next role=receive address on pc's
// channel for (zone, account), stores it in the address book under path
// pc (scanned and spendable like any other address), and advances the
// channel's receive index (spec §4.9).
func (m *Manager) NextReceiveAddress(pc string, z models.Zone, account uint32) (*models.AddressInfo, error) {
	ch, err := m.channelFor(pc)
	if err != nil {
		return nil, err
	}

	accountNode, err := bip32.DerivePath(m.root, keyderivation.AccountPath(account))
	if err != nil {
		return nil, fmt.Errorf("derive account node: %w", err)
	}

	m.mu.Lock()
	startIndex := ch.nextReceiveIndex[channelKey{z, account}]
	m.mu.Unlock()

	info, _, err := keyderivation.DeriveNextPaymentAddress(m.crypto, m.registry, accountNode, ch.counterparty, account, z, bip47.RoleReceive, startIndex)
	if err != nil {
		return nil, err
	}

	if err := m.book.Put(info); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ch.nextReceiveIndex[channelKey{z, account}] = uint32(info.Index) + 1
	m.mu.Unlock()

	return info, nil
}

// NextSendAddress derives the next role=send one-time address on pc's
// channel for (zone, account): never stored in the address book (spec
// §4.9: "not spendable by this wallet and are never scanned"), and
// never reused — checker (if given) flags a candidate already spent to
// by a previous send, which is skipped (spec §4.7 step 3: "skipped if
// flagged already-used, to preserve one-time semantics").
func (m *Manager) NextSendAddress(pc string, z models.Zone, account uint32, checker AddressUseChecker) (*models.AddressInfo, error) {
	ch, err := m.channelFor(pc)
	if err != nil {
		return nil, err
	}

	accountNode, err := bip32.DerivePath(m.root, keyderivation.AccountPath(account))
	if err != nil {
		return nil, fmt.Errorf("derive account node: %w", err)
	}

	for attempt := 0; attempt < keyderivation.MaxDerivationAttempts; attempt++ {
		m.mu.Lock()
		index := ch.nextSendIndex[channelKey{z, account}]
		m.mu.Unlock()

		info, _, err := keyderivation.DeriveNextPaymentAddress(m.crypto, m.registry, accountNode, ch.counterparty, account, z, bip47.RoleSend, index)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		ch.nextSendIndex[channelKey{z, account}] = uint32(info.Index) + 1
		m.mu.Unlock()

		used := false
		if checker != nil {
			used, err = checker(info.Address)
			if err != nil {
				return nil, fmt.Errorf("address use checker: %w", err)
			}
		}
		if used {
			continue
		}

		m.mu.Lock()
		ch.sentAddresses = append(ch.sentAddresses, info.Address)
		m.mu.Unlock()
		return info, nil
	}
	return nil, walleterrors.ErrDerivationExhausted
}

// SentAddresses returns a copy of every send-address generated so far on
// pc's channel, in generation order (spec §4.8
// sender_payment_code_addresses). Returns nil if pc has no open channel.
func (m *Manager) SentAddresses(pc string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[pc]
	if !ok {
		return nil
	}
	return append([]string(nil), ch.sentAddresses...)
}

// OpenChannels returns every counterparty payment code currently open.
func (m *Manager) OpenChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.channels))
	for pc := range m.channels {
		out = append(out, pc)
	}
	return out
}

// RestoreSentAddresses opens pc's channel if not already open and sets
// its recorded send-address history to addrs, as read back from a
// snapshot (spec §4.8). It does not attempt to recover the channel's
// internal next-index counters: a subsequent NextSendAddress simply
// re-derives from index 0 and relies on the caller's AddressUseChecker
// (typically backed by this same restored list) to skip past addresses
// already generated.
func (m *Manager) RestoreSentAddresses(pc string, addrs []string) error {
	if err := m.OpenChannel(pc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.channels[pc]
	ch.sentAddresses = append([]string(nil), addrs...)
	return nil
}
