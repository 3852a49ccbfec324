// Package qiwallet is the Qi UTXO HD-wallet engine's public API: a
// single Wallet type wiring key derivation, the address book, the UTXO
// store, the scanner/syncer, coin selection, the transaction builder,
// payment channels, and snapshot persistence over an injected Crypto
// handle and Provider adapter (spec §2, §9: "the wallet owns a Crypto
// handle and a Provider handle; everything else is constructed from
// them").
package qiwallet

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/audit"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/mnemonic"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/paymentchannel"
	"github.com/dominant-strategies/go-qi-wallet/internal/provider"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/scanner"
	"github.com/dominant-strategies/go-qi-wallet/internal/snapshot"
	"github.com/dominant-strategies/go-qi-wallet/internal/txbuilder"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// Re-exported types callers need at the package boundary, so importing
// qiwallet alone is enough to build requests and inspect results.
type (
	Zone              = models.Zone
	AddressInfo       = models.AddressInfo
	OutpointInfo      = models.OutpointInfo
	Sink              = scanner.Sink
	SendRequest       = txbuilder.SendRequest
	SendResult        = txbuilder.SendResult
	AddressUseChecker = paymentchannel.AddressUseChecker
)

// Options configure a Wallet at construction time.
type Options struct {
	GapLimit          uint32
	AuditLogPath      string
	AddressUseChecker AddressUseChecker
}

// Option mutates an Options value.
type Option func(*Options)

// WithGapLimit overrides scanner.DefaultGapLimit for this wallet's scans.
func WithGapLimit(g uint32) Option {
	return func(o *Options) { o.GapLimit = g }
}

// WithAuditLog enables NDJSON operation logging to path.
func WithAuditLog(path string) Option {
	return func(o *Options) { o.AuditLogPath = path }
}

// WithAddressUseChecker installs the hook the scanner's gap-limit
// extension uses to recognize one-time send addresses the node itself
// cannot see (spec §4.5). Send does not read it: send-address allocation
// consults only SendRequest.AddressUseChecker.
func WithAddressUseChecker(f AddressUseChecker) Option {
	return func(o *Options) { o.AddressUseChecker = f }
}

// Wallet is the engine's top-level handle: one BIP32 root, one address
// book, one UTXO store, one payment-channel manager, wired to a
// Provider adapter and usable across every zone and account the caller
// addresses by parameter (spec §5: single logical owner per instance).
type Wallet struct {
	crypto   qicrypto.Crypto
	registry *zone.Registry
	root     *bip32.Node
	book     *addressbook.Book
	store    *utxostore.Store
	channels *paymentchannel.Manager
	scanner  *scanner.Scanner
	builder  *txbuilder.Builder
	prov     provider.Provider
	logger   *audit.Logger
}

// New constructs a Wallet from seed bytes (typically mnemonic.ToSeed's
// output) and a Provider adapter.
func New(crypto qicrypto.Crypto, prov provider.Provider, seed []byte, opts ...Option) (*Wallet, error) {
	cfg := Options{GapLimit: scanner.DefaultGapLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, err := bip32.NewMasterNode(crypto, seed)
	if err != nil {
		return nil, fmt.Errorf("derive root node: %w", err)
	}

	registry := zone.NewRegistry()
	book := addressbook.New(crypto, registry)
	store := utxostore.New(book)
	channels := paymentchannel.New(crypto, registry, book, root)

	var scannerOpts []scanner.Option
	scannerOpts = append(scannerOpts, scanner.WithGapLimit(cfg.GapLimit))
	if cfg.AddressUseChecker != nil {
		scannerOpts = append(scannerOpts, scanner.WithAddressUseChecker(scanner.AddressUseChecker(cfg.AddressUseChecker)))
	}
	sc := scanner.New(crypto, registry, book, store, prov, root, scannerOpts...)
	builder := txbuilder.New(crypto, registry, root, book, store, channels, prov)

	w := &Wallet{
		crypto:   crypto,
		registry: registry,
		root:     root,
		book:     book,
		store:    store,
		channels: channels,
		scanner:  sc,
		builder:  builder,
		prov:     prov,
	}

	if cfg.AuditLogPath != "" {
		logger, err := audit.New(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		w.logger = logger
	}

	return w, nil
}

// Restore rebuilds a Wallet from a previously exported snapshot (spec
// §4.8). mn supplies the mnemonic-to-seed conversion for the phrase the
// snapshot carries; passphrase is the BIP39 passphrase used at export
// time, if any.
func Restore(crypto qicrypto.Crypto, prov provider.Provider, mn mnemonic.Mnemonic, passphrase string, data []byte, opts ...Option) (*Wallet, error) {
	cfg := Options{GapLimit: scanner.DefaultGapLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := zone.NewRegistry()
	root, book, store, channels, err := snapshot.Restore(crypto, registry, mn, passphrase, data)
	if err != nil {
		return nil, err
	}

	var scannerOpts []scanner.Option
	scannerOpts = append(scannerOpts, scanner.WithGapLimit(cfg.GapLimit))
	if cfg.AddressUseChecker != nil {
		scannerOpts = append(scannerOpts, scanner.WithAddressUseChecker(scanner.AddressUseChecker(cfg.AddressUseChecker)))
	}
	sc := scanner.New(crypto, registry, book, store, prov, root, scannerOpts...)
	builder := txbuilder.New(crypto, registry, root, book, store, channels, prov)

	w := &Wallet{
		crypto:   crypto,
		registry: registry,
		root:     root,
		book:     book,
		store:    store,
		channels: channels,
		scanner:  sc,
		builder:  builder,
		prov:     prov,
	}

	if cfg.AuditLogPath != "" {
		logger, err := audit.New(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		w.logger = logger
	}

	w.log(audit.Entry{Operation: audit.OpSnapshotImport, Status: audit.StatusSuccess})
	return w, nil
}

func (w *Wallet) log(entry audit.Entry) {
	if w.logger == nil {
		return
	}
	if err := w.logger.Log(entry); err != nil {
		fmt.Printf("qiwallet: audit log write failed: %v\n", err)
	}
}

func accountPtr(account uint32) *uint32 { return &account }
