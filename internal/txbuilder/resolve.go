package txbuilder

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip47"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
)

// resolvePrivateKey implements spec §4.7's "private-key resolution for
// an input pubkey": given the AddressInfo an input's address resolves
// to, reconstruct the private key by walking the path its
// DerivationPath names.
func resolvePrivateKey(crypto qicrypto.Crypto, root *bip32.Node, info *models.AddressInfo) (qicrypto.PrivateKey, error) {
	switch info.Kind() {
	case models.PathKindBIP44External, models.PathKindBIP44Change:
		path := keyderivation.AddressPath(info.Account, info.Kind() == models.PathKindBIP44Change, uint32(info.Index))
		node, err := bip32.DerivePath(root, path)
		if err != nil {
			return nil, fmt.Errorf("re-derive %s: %w", path, err)
		}
		return node.PrivateKey(), nil

	case models.PathKindBIP47:
		counterparty, err := bip47.Parse(info.CounterpartyPaymentCode())
		if err != nil {
			return nil, fmt.Errorf("parse payment code %q: %w", info.DerivationPath, err)
		}
		accountNode, err := bip32.DerivePath(root, keyderivation.AccountPath(info.Account))
		if err != nil {
			return nil, fmt.Errorf("derive account node: %w", err)
		}
		priv, _, err := bip47.DerivePaymentAddress(crypto, accountNode, counterparty, uint32(info.Index), bip47.RoleReceive)
		if err != nil {
			return nil, fmt.Errorf("reconstruct payment address %d: %w", info.Index, err)
		}
		return priv, nil

	case models.PathKindImported:
		priv, err := crypto.ParsePrivateKey(info.ImportedSecret)
		if err != nil {
			return nil, fmt.Errorf("parse imported private key for %s: %w", info.Address, err)
		}
		return priv, nil

	default:
		return nil, fmt.Errorf("unrecognized derivation path kind for %s", info.Address)
	}
}

// pubKeyResolver returns a function looking up an address's stored
// pubkey directly from the address book (no private-key reconstruction
// needed just to build the unsigned transaction body).
func pubKeyResolver(book *addressbook.Book) func(address string) ([]byte, error) {
	return func(address string) ([]byte, error) {
		info, err := book.GetByAddress(address)
		if err != nil {
			return nil, err
		}
		return info.PubKey, nil
	}
}
