package models

// DenominationTable is the fixed public 16-entry table mapping a
// denomination index to its coin value, per spec §3/§6. Values are
// monotonically increasing; every Qi transaction output amount must be
// one of these.
var DenominationTable = [16]uint64{
	1, 5, 10, 50, 100, 250, 500, 1000,
	5000, 10000, 50000, 100000, 250000, 500000, 1000000, 5000000,
}

// MinConversionDenomination is the minimum denomination index accepted
// when converting Qi outputs onto the Quai (account) ledger (spec §4.6,
// scenario 4: denomination 9 must be rejected as DenominationTooSmall).
const MinConversionDenomination uint8 = 10

// Outpoint identifies one unspent output by its transaction hash and
// output index, carrying the denomination and optional time-lock (spec §3).
type Outpoint struct {
	TxHash      string
	Index       uint16
	Denomination uint8 // 0..15, indexes DenominationTable
	Lock        uint64 // block number; 0 = unlocked
}

// Value looks up this outpoint's coin value from the denomination table.
func (o Outpoint) Value() uint64 {
	if int(o.Denomination) >= len(DenominationTable) {
		return 0
	}
	return DenominationTable[o.Denomination]
}

// Key returns the (txhash,index) identity used across available/pending maps.
func (o Outpoint) Key() OutpointKey {
	return OutpointKey{TxHash: o.TxHash, Index: o.Index}
}

// OutpointKey is the map key type for UTXO store lookups.
type OutpointKey struct {
	TxHash string
	Index  uint16
}

// OutpointInfo binds an Outpoint to the address that owns it, per spec §3.
// It stores the address string rather than a pointer into the address
// book (DESIGN NOTES §9: "outpoints store the address string, not a
// pointer"), avoiding a cyclic address<->outpoint reference.
type OutpointInfo struct {
	Outpoint       Outpoint
	Address        string
	Zone           Zone
	Account        *uint32
	DerivationPath *string
}
