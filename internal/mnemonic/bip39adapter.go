package mnemonic

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"
)

// BIP39Adapter implements Mnemonic over github.com/tyler-smith/go-bip39,
// adapted from the teacher's BIP39Service
// (internal/services/bip39service/service.go).
type BIP39Adapter struct{}

// NewBIP39Adapter constructs a BIP39Adapter using the English wordlist.
func NewBIP39Adapter() *BIP39Adapter {
	bip39.SetWordList(wordlists.English)
	return &BIP39Adapter{}
}

// GenerateMnemonic creates a new mnemonic phrase with the given word
// count (12, 15, 18, 21, or 24).
func (a *BIP39Adapter) GenerateMnemonic(wordCount int) (string, error) {
	entropyBits, ok := entropyBitsForWordCount[wordCount]
	if !ok {
		return "", fmt.Errorf("mnemonic: unsupported word count %d", wordCount)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("mnemonic: generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("mnemonic: generate mnemonic: %w", err)
	}
	return phrase, nil
}

var entropyBitsForWordCount = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

// Validate reports whether phrase is a well-formed BIP39 mnemonic.
func (a *BIP39Adapter) Validate(phrase string) error {
	if !bip39.IsMnemonicValid(phrase) {
		return fmt.Errorf("mnemonic: invalid mnemonic phrase")
	}
	return nil
}

// ToSeed derives BIP32 root seed bytes from phrase and passphrase,
// validating phrase first.
func (a *BIP39Adapter) ToSeed(phrase, passphrase string) ([]byte, error) {
	if err := a.Validate(phrase); err != nil {
		return nil, err
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, passphrase)
	if err != nil {
		return nil, fmt.Errorf("mnemonic: derive seed: %w", err)
	}
	return seed, nil
}

var _ Mnemonic = (*BIP39Adapter)(nil)
