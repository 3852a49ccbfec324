package txbuilder

import (
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
)

// sign implements spec §4.7 step 9: one input signs with a plain
// Schnorr signature over the Keccak-256 of the unsigned serialized
// transaction; multiple inputs sign with an aggregate MuSig
// Schnorr signature over the same hash. Returns the 64-byte signature.
func sign(crypto qicrypto.Crypto, privs []qicrypto.PrivateKey, tx Transaction) ([]byte, error) {
	if len(privs) == 0 {
		return nil, fmt.Errorf("cannot sign a transaction with no inputs")
	}

	unsigned, err := EncodeUnsigned(tx)
	if err != nil {
		return nil, fmt.Errorf("encode unsigned transaction: %w", err)
	}
	msgHash := crypto.Keccak256(unsigned)

	if len(privs) == 1 {
		sig, err := crypto.SchnorrSign(privs[0], msgHash)
		if err != nil {
			return nil, fmt.Errorf("schnorr sign: %w", err)
		}
		return sig, nil
	}

	sig, err := crypto.MuSigSign(privs, msgHash)
	if err != nil {
		return nil, fmt.Errorf("musig sign: %w", err)
	}
	return sig, nil
}
