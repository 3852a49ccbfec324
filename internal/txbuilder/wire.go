package txbuilder

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
)

// Transaction is the assembled, bit-exact wire shape spec §6 names:
// {chain_id, inputs[{txhash, index, pubkey}], outputs[{address,
// denomination}], signature}. Signature is nil until Send signs it.
type Transaction struct {
	ChainID   uint64
	Inputs    []TxInput
	Outputs   []TxOutput
	Signature []byte // 64 bytes once signed (Schnorr or MuSig aggregate)
}

// TxInput is one spent outpoint plus the pubkey that authorizes spending
// it (spec §4.7 step 7). TxHash uses chainhash.Hash as its fixed-size
// array type, the same pattern the teacher's
// src/chainadapter/bitcoin/builder.go uses for a UTXO's previous-output
// hash, rather than carrying the hash as an ad hoc byte slice.
type TxInput struct {
	TxHash chainhash.Hash
	Index  uint16
	PubKey []byte // 33-byte compressed
}

// TxOutput is one denomination-sized output (spec §4.7 step 7).
type TxOutput struct {
	Address      string // 0x-prefixed 20-byte hex
	Denomination uint8
}

// EncodeUnsigned serializes everything but the signature: the exact
// bytes step 9 Keccak-256-hashes and signs (spec §4.7 step 9, §6
// "fixed binary codec ... bit-exact").
//
// Layout: chain_id(8) | num_inputs(2) | inputs[txhash(32) index(2)
// pubkey(33)] | num_outputs(2) | outputs[address(20) denomination(1)].
func EncodeUnsigned(tx Transaction) ([]byte, error) {
	buf := make([]byte, 0, 8+2+len(tx.Inputs)*67+2+len(tx.Outputs)*21)

	var chainIDBytes [8]byte
	binary.BigEndian.PutUint64(chainIDBytes[:], tx.ChainID)
	buf = append(buf, chainIDBytes[:]...)

	var numInputs [2]byte
	binary.BigEndian.PutUint16(numInputs[:], uint16(len(tx.Inputs)))
	buf = append(buf, numInputs[:]...)

	for i, in := range tx.Inputs {
		if len(in.PubKey) != 33 {
			return nil, fmt.Errorf("input %d: pubkey must be 33 bytes, got %d", i, len(in.PubKey))
		}

		buf = append(buf, in.TxHash[:]...)
		var idxBytes [2]byte
		binary.BigEndian.PutUint16(idxBytes[:], in.Index)
		buf = append(buf, idxBytes[:]...)
		buf = append(buf, in.PubKey...)
	}

	var numOutputs [2]byte
	binary.BigEndian.PutUint16(numOutputs[:], uint16(len(tx.Outputs)))
	buf = append(buf, numOutputs[:]...)

	for i, out := range tx.Outputs {
		addr, err := decodeFixedHex(out.Address, 20)
		if err != nil {
			return nil, fmt.Errorf("output %d: address: %w", i, err)
		}
		buf = append(buf, addr...)
		buf = append(buf, out.Denomination)
	}

	return buf, nil
}

// Encode serializes tx including its signature, appended after the
// unsigned body. Fails if tx has not been signed yet.
func Encode(tx Transaction) ([]byte, error) {
	if len(tx.Signature) != 64 {
		return nil, fmt.Errorf("transaction signature must be 64 bytes, got %d", len(tx.Signature))
	}
	unsigned, err := EncodeUnsigned(tx)
	if err != nil {
		return nil, err
	}
	return append(unsigned, tx.Signature...), nil
}

// decodeTxHash parses a 0x-prefixed 32-byte hex string (the form
// models.Outpoint.TxHash carries) into a chainhash.Hash. It deliberately
// uses NewHash, not NewHashFromStr: the latter reverses byte order to
// match Bitcoin's little-endian txid display convention, which would
// silently break round-tripping against the forward-order hex strings
// this module stores everywhere else (address book, UTXO store,
// snapshots, provider responses).
func decodeTxHash(s string) (chainhash.Hash, error) {
	raw, err := decodeFixedHex(s, chainhash.HashSize)
	if err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := chainhash.NewHash(raw)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return *hash, nil
}

func decodeFixedHex(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(raw))
	}
	return raw, nil
}

// outputsFromDenominated converts allocated DenominatedOutput values
// (address assigned) into the wire TxOutput shape.
func outputsFromDenominated(outs []models.DenominatedOutput) []TxOutput {
	wire := make([]TxOutput, len(outs))
	for i, o := range outs {
		wire[i] = TxOutput{Address: o.Address, Denomination: o.Denomination}
	}
	return wire
}

// inputsFromOutpoints converts selected inputs, each paired with its
// owning address's pubkey, into the wire TxInput shape.
func inputsFromOutpoints(inputs []models.OutpointInfo, pubKeyFor func(address string) ([]byte, error)) ([]TxInput, error) {
	wire := make([]TxInput, len(inputs))
	for i, in := range inputs {
		pub, err := pubKeyFor(in.Address)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		txHash, err := decodeTxHash(in.Outpoint.TxHash)
		if err != nil {
			return nil, fmt.Errorf("input %d: txhash: %w", i, err)
		}
		wire[i] = TxInput{TxHash: txHash, Index: in.Outpoint.Index, PubKey: pub}
	}
	return wire, nil
}
