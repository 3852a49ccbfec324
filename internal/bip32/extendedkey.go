package bip32

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Version prefixes for extended key serialization (spec §6).
const (
	VersionPrivate uint32 = 0x0488ADE4 // xprv
	VersionPublic  uint32 = 0x0488B21E // xpub
)

// ExtendedKey serializes n to the standard 78-byte extended key layout:
// version(4) || depth(1) || parentFingerprint(4) || childIndex(4) ||
// chainCode(32) || keyData(33), Base58Check-encoded with a 4-byte
// double-SHA256 checksum.
func ExtendedKey(n *Node) (string, error) {
	buf := make([]byte, 0, 78)

	var version uint32
	var keyData [33]byte
	if n.priv != nil {
		version = VersionPrivate
		keyData[0] = 0x00
		copy(keyData[1:], n.priv.Bytes())
	} else {
		version = VersionPublic
		copy(keyData[:], n.pub.Compressed())
	}

	var versionBytes, indexBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], version)
	binary.BigEndian.PutUint32(indexBytes[:], n.childIndex)

	buf = append(buf, versionBytes[:]...)
	buf = append(buf, n.depth)
	buf = append(buf, n.parentFingerprint[:]...)
	buf = append(buf, indexBytes[:]...)
	buf = append(buf, n.chainCode[:]...)
	buf = append(buf, keyData[:]...)

	return base58.Encode(appendChecksum(buf)), nil
}

// ParseExtendedKey decodes a Base58Check extended key string into its
// raw component fields. It does not reconstruct a usable Node (the
// crypto handle needed to parse the key material back into a
// PrivateKey/PublicKey is not available here); callers that need a live
// Node should instead keep the Node in memory and use ExtendedKey only
// for export/display.
type ExtendedKeyFields struct {
	Version           uint32
	Depth             uint8
	ParentFingerprint [4]byte
	ChildIndex        uint32
	ChainCode         [32]byte
	KeyData           [33]byte
	IsPrivate         bool
}

func ParseExtendedKey(s string) (*ExtendedKeyFields, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("base58 decode: %w", err)
	}
	if len(raw) != 82 {
		return nil, fmt.Errorf("extended key must decode to 82 bytes, got %d", len(raw))
	}

	payload, checksum := raw[:78], raw[78:]
	if !validChecksum(payload, checksum) {
		return nil, fmt.Errorf("extended key checksum mismatch")
	}

	f := &ExtendedKeyFields{}
	f.Version = binary.BigEndian.Uint32(payload[0:4])
	f.Depth = payload[4]
	copy(f.ParentFingerprint[:], payload[5:9])
	f.ChildIndex = binary.BigEndian.Uint32(payload[9:13])
	copy(f.ChainCode[:], payload[13:45])
	copy(f.KeyData[:], payload[45:78])
	f.IsPrivate = f.Version == VersionPrivate

	return f, nil
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
