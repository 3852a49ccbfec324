// Package keyderivation orchestrates the BIP32/BIP44/BIP47 building
// blocks in internal/bip32 and internal/bip47 into the operations spec
// §4.1 names: address_of, derive_next_qi_address, payment_code, and
// derive_payment_address — each wrapped in the Qi+zone acceptance
// predicate and skip-and-retry policy the spec requires on every
// derivation.
package keyderivation

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip47"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// MaxDerivationAttempts bounds derive_next_qi_address and
// derive_payment_address (spec §4.1, §7): exhausting it is fatal.
const MaxDerivationAttempts = 10000

// IsQiAddress implements the bit-level Qi/Quai ledger predicate: the
// low bit of the address's last byte selects the ledger. This is the
// module's own concrete choice for an otherwise abstractly-described
// predicate (spec §4.1: "a bit-level predicate marks the address as
// Qi... or Quai"); see DESIGN.md for the reasoning.
func IsQiAddress(addr [20]byte) bool {
	return addr[19]&0x01 == 1
}

// AddressOf computes the 20-byte network address for a public key:
// Keccak-256 of the uncompressed point, last 20 bytes (spec §4.1).
func AddressOf(crypto qicrypto.Crypto, pub qicrypto.PublicKey) [20]byte {
	hash := crypto.Keccak256(pub.Uncompressed())
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// AddressHex renders addr in the canonical lowercase 0x-prefixed form
// (spec §6).
func AddressHex(addr [20]byte) string {
	return models.NormalizeAddress(fmt.Sprintf("%x", addr[:]))
}

// AccountPath returns the hardened account-level BIP44 path for Qi
// coin type 969 (spec §3: "account sub-tree is m/44'/969'/account'").
func AccountPath(account uint32) string {
	return fmt.Sprintf("44'/969'/%d'", account)
}

// externalChangePath returns the full BIP44 address path for a given
// account/change/index triple.
func externalChangePath(account uint32, change bool, index uint32) string {
	changeLevel := 0
	if change {
		changeLevel = 1
	}
	return fmt.Sprintf("%s/%d/%d", AccountPath(account), changeLevel, index)
}

// AddressPath is the exported form of externalChangePath, used by
// callers (the transaction builder's private-key resolution, spec §4.7)
// that need to re-walk a specific BIP44 address's path rather than
// derive_next_qi_address's retry loop.
func AddressPath(account uint32, change bool, index uint32) string {
	return externalChangePath(account, change, index)
}

// accept reports whether a derived address passes the shared Qi+zone
// predicate every derivation operation applies (spec §4.1).
func accept(registry *zone.Registry, addr [20]byte, z models.Zone) bool {
	if !IsQiAddress(addr) {
		return false
	}
	return registry.InZone(addr[:], z)
}

// DeriveNextQiAddress implements derive_next_qi_address: starting at
// startIndex, derives m/44'/969'/account'/change/i for increasing i
// until a candidate both satisfies the Qi predicate and falls in zone
// z, or MaxDerivationAttempts is exhausted (spec §4.1, §7
// DerivationExhausted).
func DeriveNextQiAddress(crypto qicrypto.Crypto, registry *zone.Registry, root *bip32.Node, account uint32, z models.Zone, change bool, startIndex uint32) (*models.AddressInfo, error) {
	pathKind := models.PathBIP44External
	if change {
		pathKind = models.PathBIP44Change
	}

	for attempt := 0; attempt < MaxDerivationAttempts; attempt++ {
		index := startIndex + uint32(attempt)
		path := externalChangePath(account, change, index)

		node, err := bip32.DerivePath(root, path)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}

		addr := AddressOf(crypto, node.PublicKey())
		if !accept(registry, addr, z) {
			continue
		}

		return &models.AddressInfo{
			Address:        AddressHex(addr),
			PubKey:         node.PublicKey().Compressed(),
			Account:        account,
			Index:          int64(index),
			Zone:           z,
			Change:         change,
			Status:         models.StatusUnused,
			DerivationPath: pathKind,
		}, nil
	}

	return nil, walleterrors.ErrDerivationExhausted
}

// PaymentCodeForAccount builds this account's BIP47 payment code (spec
// §4.1 payment_code(account)), along with the account-level node it was
// built from (needed for subsequent Diffie-Hellman derivation).
func PaymentCodeForAccount(root *bip32.Node, account uint32) (*bip47.PaymentCode, *bip32.Node, error) {
	accountNode, err := bip32.DerivePath(root, AccountPath(account))
	if err != nil {
		return nil, nil, fmt.Errorf("derive account node: %w", err)
	}
	return bip47.NewPaymentCode(accountNode), accountNode, nil
}

// DeriveNextPaymentAddress implements derive_payment_address: applies
// the same Qi+zone acceptance/retry policy as DeriveNextQiAddress, but
// over BIP47 Diffie-Hellman-derived one-time addresses (spec §4.1).
// role selects RoleSend (we don't learn the private key — paying the
// counterparty) or RoleReceive (reconstructing our own received
// address's private key).
func DeriveNextPaymentAddress(crypto qicrypto.Crypto, registry *zone.Registry, selfAccountNode *bip32.Node, counterparty *bip47.PaymentCode, account uint32, z models.Zone, role bip47.Role, startIndex uint32) (*models.AddressInfo, qicrypto.PrivateKey, error) {
	for attempt := 0; attempt < MaxDerivationAttempts; attempt++ {
		index := startIndex + uint32(attempt)

		priv, pub, err := bip47.DerivePaymentAddress(crypto, selfAccountNode, counterparty, index, role)
		if err != nil {
			return nil, nil, fmt.Errorf("derive payment address %d: %w", index, err)
		}

		addr := AddressOf(crypto, pub)
		if !accept(registry, addr, z) {
			continue
		}

		info := &models.AddressInfo{
			Address:        AddressHex(addr),
			PubKey:         pub.Compressed(),
			Account:        account,
			Index:          int64(index),
			Zone:           z,
			Change:         false,
			Status:         models.StatusUnused,
			DerivationPath: counterparty.String(),
		}
		return info, priv, nil
	}

	return nil, nil, walleterrors.ErrDerivationExhausted
}
