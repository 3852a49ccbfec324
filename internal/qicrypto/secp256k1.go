package qicrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/musig2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // BIP32 fingerprint primitive, not a security-sensitive hash choice
)

// btcecPrivateKey and btcecPublicKey adapt btcec/v2's concrete types to
// the package's opaque PrivateKey/PublicKey interfaces.
type btcecPrivateKey struct{ key *btcec.PrivateKey }
type btcecPublicKey struct{ key *btcec.PublicKey }

func (k btcecPrivateKey) PubKey() PublicKey { return btcecPublicKey{k.key.PubKey()} }
func (k btcecPrivateKey) Bytes() []byte     { return k.key.Serialize() }
func (k btcecPublicKey) Compressed() []byte { return k.key.SerializeCompressed() }

func (k btcecPublicKey) Uncompressed() []byte {
	// SerializeUncompressed is 65 bytes: 0x04 prefix || X(32) || Y(32).
	return k.key.SerializeUncompressed()[1:]
}

// Secp256k1 is the default Crypto implementation, grounded on the
// teacher's btcec/v2 dependency for curve arithmetic, its BIP-340
// Schnorr and MuSig2 subpackages for signing, go-ethereum's Keccak-256
// for address hashing, and golang.org/x/crypto's RIPEMD-160 for the
// BIP32 fingerprint primitive.
type Secp256k1 struct{}

// New returns the default secp256k1-backed Crypto implementation.
func New() Crypto { return Secp256k1{} }

func (Secp256k1) ParsePrivateKey(raw []byte) (PrivateKey, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return btcecPrivateKey{priv}, nil
}

func (Secp256k1) ParsePublicKey(raw []byte) (PublicKey, error) {
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return btcecPublicKey{pub}, nil
}

func (s Secp256k1) AddTweak(priv PrivateKey, tweak [32]byte) (PrivateKey, error) {
	p, ok := priv.(btcecPrivateKey)
	if !ok {
		return nil, fmt.Errorf("foreign PrivateKey implementation")
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetBytes(&tweak); overflow != 0 {
		return nil, fmt.Errorf("tweak out of range")
	}
	sum := new(btcec.ModNScalar).Set(&p.key.Key)
	sum.Add(&scalar)
	if sum.IsZero() {
		return nil, fmt.Errorf("derived private key is zero")
	}
	sumBytes := sum.Bytes()
	child, _ := btcec.PrivKeyFromBytes(sumBytes[:])
	return btcecPrivateKey{child}, nil
}

func (s Secp256k1) AddPointTweak(pub PublicKey, tweak [32]byte) (PublicKey, error) {
	p, ok := pub.(btcecPublicKey)
	if !ok {
		return nil, fmt.Errorf("foreign PublicKey implementation")
	}
	var scalar btcec.ModNScalar
	if overflow := scalar.SetBytes(&tweak); overflow != 0 {
		return nil, fmt.Errorf("tweak out of range")
	}
	var tweakPoint, pubPoint, sumPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&scalar, &tweakPoint)
	p.key.AsJacobian(&pubPoint)
	btcec.AddNonConst(&tweakPoint, &pubPoint, &sumPoint)
	sumPoint.ToAffine()
	child := btcec.NewPublicKey(&sumPoint.X, &sumPoint.Y)
	return btcecPublicKey{child}, nil
}

func (s Secp256k1) ECDH(priv PrivateKey, pub PublicKey) [32]byte {
	p := priv.(btcecPrivateKey)
	q := pub.(btcecPublicKey)

	var point, shared btcec.JacobianPoint
	q.key.AsJacobian(&point)
	btcec.ScalarMultNonConst(&p.key.Key, &point, &shared)
	shared.ToAffine()

	var out [32]byte
	xBytes := shared.X.Bytes()
	copy(out[:], xBytes[:])
	return out
}

func (Secp256k1) Keccak256(data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(data...))
	return out
}

func (Secp256k1) Hash160(data []byte) [20]byte {
	sha := sha256.Sum256(data)
	ripemd := ripemd160.New()
	ripemd.Write(sha[:])
	var out [20]byte
	copy(out[:], ripemd.Sum(nil))
	return out
}

func (Secp256k1) HMACSHA512(key, data []byte) [64]byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	var out [64]byte
	copy(out[:], mac.Sum(nil))
	return out
}

func (Secp256k1) SchnorrSign(priv PrivateKey, msgHash [32]byte) ([]byte, error) {
	p := priv.(btcecPrivateKey)
	sig, err := schnorr.Sign(p.key, msgHash[:])
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

func (Secp256k1) SchnorrVerify(pub PublicKey, msgHash [32]byte, sig []byte) bool {
	q := pub.(btcecPublicKey)
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(msgHash[:], q.key)
}

func toBtcecPubKeys(pubs []PublicKey) ([]*btcec.PublicKey, error) {
	out := make([]*btcec.PublicKey, len(pubs))
	for i, p := range pubs {
		q, ok := p.(btcecPublicKey)
		if !ok {
			return nil, fmt.Errorf("foreign PublicKey implementation at index %d", i)
		}
		out[i] = q.key
	}
	return out, nil
}

func (Secp256k1) MuSigAggregate(pubs []PublicKey) (PublicKey, error) {
	keys, err := toBtcecPubKeys(pubs)
	if err != nil {
		return nil, err
	}
	agg, _, _, err := musig2.AggregateKeys(keys, true)
	if err != nil {
		return nil, fmt.Errorf("musig aggregate keys: %w", err)
	}
	return btcecPublicKey{agg.FinalKey}, nil
}

// MuSigSign runs a single-round MuSig2 session across privs: a nonce is
// generated per signer, nonces are aggregated, each signer emits a
// partial signature over msgHash against the combined pubkey set, and
// the partials are combined into one 64-byte signature (spec §4.7 step
// 9, multiple inputs).
func (s Secp256k1) MuSigSign(privs []PrivateKey, msgHash [32]byte) ([]byte, error) {
	if len(privs) == 0 {
		return nil, fmt.Errorf("musig sign requires at least one signer")
	}

	pubs := make([]PublicKey, len(privs))
	for i, p := range privs {
		pubs[i] = p.PubKey()
	}
	keys, err := toBtcecPubKeys(pubs)
	if err != nil {
		return nil, err
	}

	sessions := make([]*musig2.Session, len(privs))
	pubNonces := make([][musig2.PubNonceSize]byte, len(privs))
	for i, p := range privs {
		priv := p.(btcecPrivateKey)
		ctx, err := musig2.NewContext(priv.key, true, musig2.WithKnownSigners(keys))
		if err != nil {
			return nil, fmt.Errorf("musig context for signer %d: %w", i, err)
		}
		session, err := ctx.NewSession()
		if err != nil {
			return nil, fmt.Errorf("musig session %d: %w", i, err)
		}
		sessions[i] = session
		pubNonces[i] = session.PublicNonce()
	}

	for i, session := range sessions {
		for j, nonce := range pubNonces {
			if i == j {
				continue
			}
			if _, err := session.RegisterPubNonce(nonce); err != nil {
				return nil, fmt.Errorf("register nonce from signer %d into signer %d: %w", j, i, err)
			}
		}
	}

	partials := make([]*musig2.PartialSignature, len(sessions))
	for i, session := range sessions {
		partial, err := session.Sign(msgHash)
		if err != nil {
			return nil, fmt.Errorf("partial sign by signer %d: %w", i, err)
		}
		partials[i] = partial
	}

	// Fold every other signer's partial into signer 0's session; its own
	// partial is already registered by Sign() above.
	for i, partial := range partials {
		if i == 0 {
			continue
		}
		if _, err := sessions[0].CombineSig(partial); err != nil {
			return nil, fmt.Errorf("combine partial signature from signer %d: %w", i, err)
		}
	}

	sig, ok := sessions[0].FinalSig()
	if !ok {
		return nil, fmt.Errorf("musig session did not reach a final signature")
	}
	return sig.Serialize(), nil
}

func (Secp256k1) MuSigVerify(pubs []PublicKey, msgHash [32]byte, sig []byte) bool {
	agg, err := Secp256k1{}.MuSigAggregate(pubs)
	if err != nil {
		return false
	}
	return Secp256k1{}.SchnorrVerify(agg, msgHash, sig)
}
