// Package bip32 implements the standard BIP32 hierarchical deterministic
// key tree the Qi wallet's BIP44 address derivation and BIP47 payment
// codes are both built on (spec §4.1). It deliberately does not reach
// for a pre-built HD-wallet library: the module needs access to the
// raw chain code and tweak arithmetic (for the BIP47 Diffie-Hellman
// step) that a black-box "derive a child xprv" API would hide, so
// derivation is expressed directly against the injected qicrypto.Crypto
// handle — the same seam DESIGN NOTES §9 calls for.
package bip32

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

// HardenedOffset marks a hardened child index, per BIP32.
const HardenedOffset uint32 = 1 << 31

// MaxDepth is the largest depth a derivation path may reach (spec §4.1:
// "Depth > 255 is rejected").
const MaxDepth = 255

// Node is one node of the BIP32 tree: either a full (private+public)
// node or a neutered public-only node.
type Node struct {
	crypto qicrypto.Crypto

	priv qicrypto.PrivateKey // nil for a public-only node
	pub  qicrypto.PublicKey

	chainCode         [32]byte
	depth             uint8
	parentFingerprint [4]byte
	childIndex        uint32
}

// NewMasterNode derives the BIP32 master node from seed bytes via
// HMAC-SHA512 with the fixed key "Bitcoin seed" (spec §3).
func NewMasterNode(crypto qicrypto.Crypto, seed []byte) (*Node, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("seed must be between 16 and 64 bytes, got %d", len(seed))
	}

	i := crypto.HMACSHA512([]byte("Bitcoin seed"), seed)
	il, ir := i[:32], i[32:]

	priv, err := crypto.ParsePrivateKey(il)
	if err != nil {
		return nil, fmt.Errorf("invalid master key material: %w", err)
	}

	node := &Node{
		crypto: crypto,
		priv:   priv,
		pub:    priv.PubKey(),
	}
	copy(node.chainCode[:], ir)
	return node, nil
}

// NewNeuteredNode builds a public-only node directly from a compressed
// public key and chain code, with no parent in the tree. BIP47 payment
// codes embed exactly this pair (spec §6: "pubkey(33), chaincode(32)"),
// so reconstructing a node from them is how a counterparty's payment
// code is turned back into something DeriveChild can walk.
func NewNeuteredNode(crypto qicrypto.Crypto, pubKey []byte, chainCode [32]byte) (*Node, error) {
	pub, err := crypto.ParsePublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Node{
		crypto:    crypto,
		pub:       pub,
		chainCode: chainCode,
	}, nil
}

// HasPrivateKey reports whether this node carries private key material.
func (n *Node) HasPrivateKey() bool { return n.priv != nil }

// PrivateKey returns this node's private key, or nil if it is neutered.
func (n *Node) PrivateKey() qicrypto.PrivateKey { return n.priv }

// PublicKey returns this node's public key.
func (n *Node) PublicKey() qicrypto.PublicKey { return n.pub }

// ChainCode returns the 32-byte chain code.
func (n *Node) ChainCode() [32]byte { return n.chainCode }

// Depth returns this node's depth in the tree (0 for the master node).
func (n *Node) Depth() uint8 { return n.depth }

// fingerprint returns this node's first-4-bytes-of-Hash160(pubkey)
// identifier, used as the parent fingerprint of its children.
func (n *Node) fingerprint() [4]byte {
	h := n.crypto.Hash160(n.pub.Compressed())
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// Neuter returns a public-only copy of n, unable to derive hardened
// children or sign.
func (n *Node) Neuter() *Node {
	return &Node{
		crypto:            n.crypto,
		pub:               n.pub,
		chainCode:         n.chainCode,
		depth:             n.depth,
		parentFingerprint: n.parentFingerprint,
		childIndex:        n.childIndex,
	}
}

// DeriveChild derives the child at index i. Hardened derivation (i &
// HardenedOffset != 0) requires n to carry a private key (spec §4.1).
func (n *Node) DeriveChild(i uint32) (*Node, error) {
	if n.depth == MaxDepth {
		return nil, walleterrors.ErrDepthExceeded
	}

	hardened := i&HardenedOffset != 0
	if hardened && n.priv == nil {
		return nil, walleterrors.ErrHardenedWithoutPrivateKey
	}

	var data []byte
	if hardened {
		data = append([]byte{0x00}, n.priv.Bytes()...)
	} else {
		data = append([]byte{}, n.pub.Compressed()...)
	}
	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], i)
	data = append(data, idxBytes[:]...)

	digest := n.crypto.HMACSHA512(n.chainCode[:], data)
	var tweak [32]byte
	copy(tweak[:], digest[:32])

	child := &Node{
		crypto:            n.crypto,
		depth:             n.depth + 1,
		parentFingerprint: n.fingerprint(),
		childIndex:        i,
	}
	copy(child.chainCode[:], digest[32:])

	if n.priv != nil {
		priv, err := n.crypto.AddTweak(n.priv, tweak)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", i, err)
		}
		child.priv = priv
		child.pub = priv.PubKey()
	} else {
		pub, err := n.crypto.AddPointTweak(n.pub, tweak)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", i, err)
		}
		child.pub = pub
	}

	return child, nil
}

// DerivePath walks root through a path of the form "m/44'/969'/0'/0/5".
// An empty path ("m" or "") returns root unchanged.
func DerivePath(root *Node, path string) (*Node, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "m")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return root, nil
	}

	components := strings.Split(path, "/")
	if len(components) > MaxDepth {
		return nil, walleterrors.ErrDepthExceeded
	}

	current := root
	for pos, component := range components {
		if component == "" {
			continue
		}
		hardened := strings.HasSuffix(component, "'")
		component = strings.TrimSuffix(component, "'")

		idx, err := strconv.ParseUint(component, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d (%q)", walleterrors.ErrInvalidPath, pos, component)
		}

		childIndex := uint32(idx)
		if hardened {
			childIndex += HardenedOffset
		}

		current, err = current.DeriveChild(childIndex)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}
