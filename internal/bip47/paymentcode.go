// Package bip47 implements BIP47 payment codes: the Base58Check
// envelope used to publish a reusable "address" that both sides derive
// one-time receive/send addresses from via Diffie-Hellman, and the
// shared-secret derivation itself (spec §4.1, §6).
package bip47

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

// VersionByte is the payment code's Base58Check version byte (spec §6).
const VersionByte byte = 0x47

const (
	bodyLength    = 80
	paddingLength = 13
)

// PaymentCode is a parsed BIP47 payment code: a notification-level
// public key and chain code, embeddable in an 80-byte body of
// [version=1, options=0, pubkey(33), chaincode(32), padding(13)].
type PaymentCode struct {
	pubKey    []byte // 33-byte compressed
	chainCode [32]byte
}

// NewPaymentCode builds a payment code from an account node's
// notification-level key (spec §4.1 payment_code(account)). node need
// not carry a private key — only its public key and chain code are
// embedded.
func NewPaymentCode(node *bip32.Node) *PaymentCode {
	pc := &PaymentCode{chainCode: node.ChainCode()}
	pc.pubKey = append(pc.pubKey, node.PublicKey().Compressed()...)
	return pc
}

// PubKey returns the embedded 33-byte compressed public key.
func (pc *PaymentCode) PubKey() []byte { return append([]byte(nil), pc.pubKey...) }

// ChainCode returns the embedded 32-byte chain code.
func (pc *PaymentCode) ChainCode() [32]byte { return pc.chainCode }

// String Base58Check-encodes pc: version byte 0x47 followed by the
// 80-byte body (spec §6).
func (pc *PaymentCode) String() string {
	body := make([]byte, 0, bodyLength)
	body = append(body, 0x01, 0x00)
	body = append(body, pc.pubKey...)
	body = append(body, pc.chainCode[:]...)
	body = append(body, make([]byte, paddingLength)...)

	payload := append([]byte{VersionByte}, body...)
	return base58.Encode(appendChecksum(payload))
}

// Parse decodes a Base58Check payment code string. Validation: the
// checksum round-trips, the body is exactly 80 bytes, and the first
// inner byte equals 0x01 (spec §6).
func Parse(s string) (*PaymentCode, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: base58 decode: %v", walleterrors.ErrInvalidPaymentCode, err)
	}
	if len(raw) != 1+bodyLength+4 {
		return nil, fmt.Errorf("%w: unexpected length %d", walleterrors.ErrInvalidPaymentCode, len(raw))
	}

	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !validChecksum(payload, checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch", walleterrors.ErrInvalidPaymentCode)
	}
	if payload[0] != VersionByte {
		return nil, fmt.Errorf("%w: unexpected version byte 0x%02x", walleterrors.ErrInvalidPaymentCode, payload[0])
	}

	body := payload[1:]
	if body[0] != 0x01 {
		return nil, fmt.Errorf("%w: unexpected body version 0x%02x", walleterrors.ErrInvalidPaymentCode, body[0])
	}

	pc := &PaymentCode{}
	pc.pubKey = append(pc.pubKey, body[2:35]...)
	copy(pc.chainCode[:], body[35:67])
	return pc, nil
}

// Role selects which side of a BIP47 exchange DerivePaymentAddress is
// computing for.
type Role int

const (
	// RoleSend derives a one-time public key to pay the counterparty
	// to — the sender does not hold the resulting private key.
	RoleSend Role = iota
	// RoleReceive reconstructs the private key of a one-time address
	// this account previously received funds at.
	RoleReceive
)

// DeriveSharedSecret computes the BIP47 Diffie-Hellman shared secret
// between this account's notification node and a counterparty payment
// code: SHA256(ECDH(notificationPriv, counterpartyPub).x).
func DeriveSharedSecret(crypto qicrypto.Crypto, notificationNode *bip32.Node, counterparty *PaymentCode) ([32]byte, error) {
	if !notificationNode.HasPrivateKey() {
		return [32]byte{}, fmt.Errorf("shared secret derivation requires a private key")
	}
	otherPub, err := crypto.ParsePublicKey(counterparty.PubKey())
	if err != nil {
		return [32]byte{}, fmt.Errorf("parse counterparty pubkey: %w", err)
	}
	point := crypto.ECDH(notificationNode.PrivateKey(), otherPub)
	return sha256.Sum256(point[:]), nil
}

// DerivePaymentAddress derives the i-th one-time address in a BIP47
// channel between selfNode (this account's notification node) and
// counterparty (spec §4.1 derive_payment_address): the i-th child of
// whichever side's chain is being addressed is tweaked by the shared
// secret. With role RoleSend the counterparty's i-th public key is
// tweaked (send-to address, no private key available). With
// RoleReceive this account's own i-th private key is tweaked
// (reconstructing a previously-received address to spend it).
func DerivePaymentAddress(crypto qicrypto.Crypto, selfNode *bip32.Node, counterparty *PaymentCode, i uint32, role Role) (qicrypto.PrivateKey, qicrypto.PublicKey, error) {
	secret, err := DeriveSharedSecret(crypto, selfNode, counterparty)
	if err != nil {
		return nil, nil, err
	}

	switch role {
	case RoleReceive:
		child, err := selfNode.DeriveChild(i)
		if err != nil {
			return nil, nil, fmt.Errorf("derive receive child %d: %w", i, err)
		}
		priv, err := crypto.AddTweak(child.PrivateKey(), secret)
		if err != nil {
			return nil, nil, fmt.Errorf("tweak receive child %d: %w", i, err)
		}
		return priv, priv.PubKey(), nil

	case RoleSend:
		counterpartyNode, err := bip32.NewNeuteredNode(crypto, counterparty.PubKey(), counterparty.ChainCode())
		if err != nil {
			return nil, nil, fmt.Errorf("reconstruct counterparty node: %w", err)
		}
		child, err := counterpartyNode.DeriveChild(i)
		if err != nil {
			return nil, nil, fmt.Errorf("derive send child %d: %w", i, err)
		}
		pub, err := crypto.AddPointTweak(child.PublicKey(), secret)
		if err != nil {
			return nil, nil, fmt.Errorf("tweak send child %d: %w", i, err)
		}
		return nil, pub, nil

	default:
		return nil, nil, fmt.Errorf("unknown role %d", role)
	}
}

func appendChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return append(payload, second[:4]...)
}

func validChecksum(payload, checksum []byte) bool {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	for i := range checksum {
		if second[i] != checksum[i] {
			return false
		}
	}
	return true
}
