// Package coinselect implements the Coin Selector (spec §4.6): the
// "fewest coins" UTXO selection algorithm over the fixed denomination
// table, plus the greedy-largest-denomination split used both for
// spend outputs and change.
package coinselect

import (
	"sort"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
)

// Request is the Coin Selector's input (spec §4.6).
type Request struct {
	TargetAmount uint64
	Available    []models.OutpointInfo

	// MinDenominationToUse optionally restricts eligible inputs to those
	// at or above this denomination index (used when converting to the
	// Quai ledger, which accepts only denomination >= models.MinConversionDenomination).
	MinDenominationToUse *uint8

	FeeEstimate uint64
}

// Select runs the "fewest coins" algorithm (spec §4.6): candidates are
// ordered by denomination descending (ties broken by (txhash,index)
// lexicographic order, for determinism), and picked greedily until their
// combined value covers target+fee. The surplus and the target itself
// are then each split into denomination-sized outputs via a
// greedy-largest-denomination pass.
func Select(req Request) (models.SelectedCoins, error) {
	candidates := filterByMinDenomination(req.Available, req.MinDenominationToUse)
	sortCandidates(candidates)

	need := req.TargetAmount + req.FeeEstimate

	var selected []models.OutpointInfo
	var total uint64
	for _, c := range candidates {
		if total >= need {
			break
		}
		selected = append(selected, c)
		total += c.Outpoint.Value()
	}

	if total < need {
		shortfall := need - total
		if req.MinDenominationToUse != nil && len(candidates) < len(req.Available) {
			return models.SelectedCoins{}, walleterrors.ErrDenominationTooSmall
		}
		return models.SelectedCoins{}, walleterrors.InsufficientFundsf(shortfall)
	}

	surplus := total - need

	spendOutputs, err := splitIntoDenominations(req.TargetAmount)
	if err != nil {
		return models.SelectedCoins{}, err
	}
	changeOutputs, err := splitIntoDenominations(surplus)
	if err != nil {
		return models.SelectedCoins{}, err
	}

	return models.SelectedCoins{
		Inputs:        selected,
		SpendOutputs:  spendOutputs,
		ChangeOutputs: changeOutputs,
	}, nil
}

func filterByMinDenomination(available []models.OutpointInfo, min *uint8) []models.OutpointInfo {
	if min == nil {
		out := make([]models.OutpointInfo, len(available))
		copy(out, available)
		return out
	}
	var out []models.OutpointInfo
	for _, o := range available {
		if o.Outpoint.Denomination >= *min {
			out = append(out, o)
		}
	}
	return out
}

// sortCandidates orders by denomination descending ("preferring higher
// denominations first"), tie-broken by (txhash, index) ascending for
// determinism (spec §4.6).
func sortCandidates(candidates []models.OutpointInfo) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Outpoint, candidates[j].Outpoint
		if a.Denomination != b.Denomination {
			return a.Denomination > b.Denomination
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.Index < b.Index
	})
}

// splitIntoDenominations expresses amount as the minimal set of
// denomination-table values summing to it, via a greedy-largest-first
// pass (spec §4.6: "split into the minimal set of denominations summing
// to the surplus, using a greedy-largest-denomination pass"). The table
// is a canonical system (1 is always present), so greedy is always
// optimal and always terminates.
func splitIntoDenominations(amount uint64) ([]models.DenominatedOutput, error) {
	var outputs []models.DenominatedOutput

	remaining := amount
	for remaining > 0 {
		idx, ok := largestDenominationAtMost(remaining)
		if !ok {
			// Unreachable: denomination index 0 is value 1, so any
			// positive remaining amount always has a usable denomination.
			return nil, walleterrors.ErrDenominationTooSmall
		}
		outputs = append(outputs, models.DenominatedOutput{Denomination: idx})
		remaining -= models.DenominationTable[idx]
	}
	return outputs, nil
}

func largestDenominationAtMost(amount uint64) (uint8, bool) {
	for i := len(models.DenominationTable) - 1; i >= 0; i-- {
		if models.DenominationTable[i] <= amount {
			return uint8(i), true
		}
	}
	return 0, false
}
