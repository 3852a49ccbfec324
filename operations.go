package qiwallet

import (
	"context"

	"github.com/dominant-strategies/go-qi-wallet/internal/audit"
	"github.com/dominant-strategies/go-qi-wallet/internal/snapshot"
)

// Scan performs full rediscovery of zone z for account (spec §4.5
// scan): drops locally-known outpoints and address statuses for z, then
// rediscovers everything from the Provider, including gap-limit
// extension. sink (optional) receives the created/deleted outpoint
// deltas once the call completes.
func (w *Wallet) Scan(ctx context.Context, z Zone, account uint32, sink Sink) error {
	err := w.scanner.Scan(ctx, z, account, sink)
	w.log(audit.Entry{
		Operation:     audit.OpScan,
		Zone:          string(z),
		Account:       accountPtr(account),
		Status:        statusFor(err),
		FailureReason: reasonFor(err),
	})
	return err
}

// Sync performs incremental delta sync of zone z for account (spec §4.5
// sync), never resetting existing state.
func (w *Wallet) Sync(ctx context.Context, z Zone, account uint32, sink Sink) error {
	err := w.scanner.Sync(ctx, z, account, sink)
	w.log(audit.Entry{
		Operation:     audit.OpSync,
		Zone:          string(z),
		Account:       accountPtr(account),
		Status:        statusFor(err),
		FailureReason: reasonFor(err),
	})
	return err
}

// Send builds, signs, and broadcasts a transaction per req (spec §4.7).
func (w *Wallet) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	result, err := w.builder.Send(ctx, req)
	w.log(audit.Entry{
		Operation:     audit.OpSend,
		Zone:          string(req.OriginZone),
		Account:       accountPtr(req.Account),
		Status:        statusFor(err),
		FailureReason: reasonFor(err),
	})
	return result, err
}

// OpenChannel opens a BIP47 payment channel with counterparty payment
// code pc (spec §4.9). Idempotent.
func (w *Wallet) OpenChannel(pc string) error {
	err := w.channels.OpenChannel(pc)
	w.log(audit.Entry{
		Operation:     audit.OpOpenChannel,
		Status:        statusFor(err),
		FailureReason: reasonFor(err),
		Detail:        pc,
	})
	return err
}

// NextReceiveAddress derives the next scanned, spendable receive
// address on pc's channel for (zone, account) (spec §4.9).
func (w *Wallet) NextReceiveAddress(pc string, z Zone, account uint32) (*AddressInfo, error) {
	return w.channels.NextReceiveAddress(pc, z, account)
}

// ImportPrivateKey imports a raw secp256k1 private key as a spendable
// address in zone z (spec §4.2 import_private_key).
func (w *Wallet) ImportPrivateKey(raw []byte, z Zone) (*AddressInfo, error) {
	info, err := w.book.ImportPrivateKey(raw, z)
	w.log(audit.Entry{
		Operation:     audit.OpImportKey,
		Zone:          string(z),
		Status:        statusFor(err),
		FailureReason: reasonFor(err),
	})
	return info, err
}

// SpendableBalance sums the value of every unlocked available outpoint
// in zone z as of blockNumber (spec §4.3 spendable_for).
func (w *Wallet) SpendableBalance(z Zone, blockNumber uint64) uint64 {
	return w.store.SpendableFor(z, blockNumber)
}

// LockedBalance sums the value of every still-locked available outpoint
// in zone z as of blockNumber (spec §4.3 locked_for).
func (w *Wallet) LockedBalance(z Zone, blockNumber uint64) uint64 {
	return w.store.LockedFor(z, blockNumber)
}

// Addresses returns every address entry currently tracked under
// derivation path.
func (w *Wallet) Addresses(path string) []*AddressInfo {
	return w.book.ListByPath(path)
}

// Snapshot exports the wallet's current state, embedding mnemonicPhrase
// verbatim (spec §4.8). The caller is responsible for the phrase's
// confidentiality once returned.
func (w *Wallet) Snapshot(mnemonicPhrase string) *snapshot.Snapshot {
	snap := snapshot.Export(mnemonicPhrase, w.book, w.store, w.channels)
	w.log(audit.Entry{Operation: audit.OpSnapshotExport, Status: audit.StatusSuccess})
	return snap
}

// SaveSnapshot exports and atomically persists the wallet's state to
// path (spec §4.8).
func (w *Wallet) SaveSnapshot(path, mnemonicPhrase string) error {
	snap := w.Snapshot(mnemonicPhrase)
	return snapshot.SaveToFile(path, snap)
}

func statusFor(err error) string {
	if err != nil {
		return audit.StatusFailure
	}
	return audit.StatusSuccess
}

func reasonFor(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
