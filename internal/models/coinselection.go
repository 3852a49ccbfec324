package models

// DenominatedOutput is a single output sized to exactly one table
// denomination — the unit coin selection and the transaction builder
// exchange (spec §4.6/§4.7: every spend and change output is a
// denomination-sized split).
type DenominatedOutput struct {
	Denomination uint8
	Address      string // empty until an address has been allocated (§4.7 step 3/4)
}

// Value reports the coin value of this output.
func (o DenominatedOutput) Value() uint64 {
	if int(o.Denomination) >= len(DenominationTable) {
		return 0
	}
	return DenominationTable[o.Denomination]
}

// SelectedCoins is the coin selector's result (spec §4.6): the chosen
// inputs and the denomination-sized splits of the target amount and
// the change surplus.
type SelectedCoins struct {
	Inputs        []OutpointInfo
	SpendOutputs  []DenominatedOutput
	ChangeOutputs []DenominatedOutput
}

// TotalInputValue sums the value of every selected input.
func (s SelectedCoins) TotalInputValue() uint64 {
	var total uint64
	for _, in := range s.Inputs {
		total += in.Outpoint.Value()
	}
	return total
}

// TotalSpendValue sums the spend-output denominations.
func (s SelectedCoins) TotalSpendValue() uint64 {
	var total uint64
	for _, o := range s.SpendOutputs {
		total += o.Value()
	}
	return total
}

// TotalChangeValue sums the change-output denominations.
func (s SelectedCoins) TotalChangeValue() uint64 {
	var total uint64
	for _, o := range s.ChangeOutputs {
		total += o.Value()
	}
	return total
}
