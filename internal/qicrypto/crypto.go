// Package qicrypto is the Crypto handle spec §1 calls an assumed
// external collaborator: secp256k1 point arithmetic, Schnorr/MuSig
// signing, and the SHA-256/RIPEMD-160/HMAC/Keccak hash primitives. The
// rest of the module never reaches for a crypto library directly — it
// takes a Crypto value at construction (DESIGN NOTES §9: "the wallet
// owns a Crypto handle... injected at construction") and calls through
// this interface, so a different backend (an HSM, a different curve
// library) can be swapped in without touching derivation, scanning, or
// signing logic.
package qicrypto

// PrivateKey and PublicKey are opaque handles; only this package's
// default implementation knows their concrete representation.
type PrivateKey interface {
	// PubKey returns the public key matching this private key.
	PubKey() PublicKey
	// Bytes returns the raw 32-byte scalar.
	Bytes() []byte
}

type PublicKey interface {
	// Compressed returns the 33-byte SEC1-compressed point.
	Compressed() []byte
	// Uncompressed returns the 64-byte X||Y point (no 0x04 prefix), the
	// form address_of hashes (spec §4.1).
	Uncompressed() []byte
}

// Crypto is the set of primitives the Qi wallet core consumes. All
// methods are pure functions of their arguments; implementations MUST
// NOT retain key material beyond the call.
type Crypto interface {
	// ParsePrivateKey parses a 32-byte scalar into a PrivateKey.
	ParsePrivateKey(raw []byte) (PrivateKey, error)

	// ParsePublicKey parses a 33-byte compressed point into a PublicKey.
	ParsePublicKey(raw []byte) (PublicKey, error)

	// AddTweak returns priv + tweak mod n, the core of BIP32 child
	// private-key derivation.
	AddTweak(priv PrivateKey, tweak [32]byte) (PrivateKey, error)

	// AddPointTweak returns pub + tweak*G mod n, the core of BIP32
	// child public-key derivation from an xpub (no private key needed).
	AddPointTweak(pub PublicKey, tweak [32]byte) (PublicKey, error)

	// ECDH returns the x-coordinate of priv*pub, used by the BIP47
	// Diffie-Hellman step (spec §4.1 derive_payment_address).
	ECDH(priv PrivateKey, pub PublicKey) [32]byte

	// Keccak256 hashes data with Keccak-256 (spec §4.1 address_of).
	Keccak256(data ...[]byte) [32]byte

	// Hash160 computes RIPEMD160(SHA256(data)), the BIP32 key
	// fingerprint primitive.
	Hash160(data []byte) [20]byte

	// HMACSHA512 computes HMAC-SHA512(key, data), the BIP32 master/child
	// derivation primitive.
	HMACSHA512(key, data []byte) [64]byte

	// SchnorrSign produces a single-signer BIP-340-style Schnorr
	// signature over msgHash (spec §4.7 step 9, one input).
	SchnorrSign(priv PrivateKey, msgHash [32]byte) ([]byte, error)

	// SchnorrVerify verifies a signature produced by SchnorrSign.
	SchnorrVerify(pub PublicKey, msgHash [32]byte, sig []byte) bool

	// MuSigAggregate aggregates signer pubkeys into a single key usable
	// for verification of a MuSig-aggregated signature.
	MuSigAggregate(pubs []PublicKey) (PublicKey, error)

	// MuSigSign runs a full MuSig2 signing session across privs over
	// msgHash and returns the final aggregated 64-byte signature (spec
	// §4.7 step 9, multiple inputs: nonce-per-signer, aggregate nonces,
	// partial signatures, aggregate signature).
	MuSigSign(privs []PrivateKey, msgHash [32]byte) ([]byte, error)

	// MuSigVerify verifies an aggregated MuSig signature against the
	// pubkey set's aggregate key.
	MuSigVerify(pubs []PublicKey, msgHash [32]byte, sig []byte) bool
}
