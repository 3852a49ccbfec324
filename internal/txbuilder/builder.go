// Package txbuilder assembles, fee-iterates, signs, and broadcasts a Qi
// transaction (spec §4.7): the canonical fixed binary wire codec
// (wire.go), private-key resolution for a selected input (resolve.go),
// Schnorr/MuSig signing dispatch (sign.go), and the Send orchestration
// below.
package txbuilder

import (
	"context"
	"fmt"

	"github.com/dominant-strategies/go-qi-wallet/internal/addressbook"
	"github.com/dominant-strategies/go-qi-wallet/internal/bip32"
	"github.com/dominant-strategies/go-qi-wallet/internal/coinselect"
	"github.com/dominant-strategies/go-qi-wallet/internal/keyderivation"
	"github.com/dominant-strategies/go-qi-wallet/internal/models"
	"github.com/dominant-strategies/go-qi-wallet/internal/paymentchannel"
	"github.com/dominant-strategies/go-qi-wallet/internal/provider"
	"github.com/dominant-strategies/go-qi-wallet/internal/qicrypto"
	"github.com/dominant-strategies/go-qi-wallet/internal/utxostore"
	"github.com/dominant-strategies/go-qi-wallet/internal/walleterrors"
	"github.com/dominant-strategies/go-qi-wallet/internal/zone"
)

// maxFeeIterations bounds the reselect-on-fee loop (spec §4.7 step 6:
// "five iterations have been attempted (and the last selection is used)").
const maxFeeIterations = 5

// convergenceThreshold is this package's reading of spec §4.7 step 6's
// "net delta in output count this iteration is ≤ 5": the loop stops
// reselecting once a fee-driven reselection changes the combined
// spend+change output count by no more than this many entries, treating
// larger churn as still-converging.
const convergenceThreshold = 5

// Builder assembles and sends Qi transactions against one wallet's
// state (spec §4.7). It composes the coin selector, the address book
// and UTXO store, the payment-channel send-address allocator, and the
// Provider adapter; it does not own any of them.
type Builder struct {
	crypto   qicrypto.Crypto
	registry *zone.Registry
	root     *bip32.Node
	book     *addressbook.Book
	store    *utxostore.Store
	channels *paymentchannel.Manager
	prov     provider.Provider
}

// New constructs a Builder over the given wallet components.
func New(crypto qicrypto.Crypto, registry *zone.Registry, root *bip32.Node, book *addressbook.Book, store *utxostore.Store, channels *paymentchannel.Manager, prov provider.Provider) *Builder {
	return &Builder{
		crypto:   crypto,
		registry: registry,
		root:     root,
		book:     book,
		store:    store,
		channels: channels,
		prov:     prov,
	}
}

// SendRequest describes one send (spec §4.7): amount denominated in Qi
// coin units, out of OriginZone, to either DestinationAddress (a Quai
// ledger address — conversion) or DestinationPaymentCode (a BIP47
// channel, which must already be open). Exactly one destination field
// must be set.
type SendRequest struct {
	OriginZone  models.Zone
	Account     uint32
	Amount      uint64

	DestinationAddress     string
	DestinationPaymentCode string
	AddressUseChecker      paymentchannel.AddressUseChecker // payment-code destinations only
}

// SendResult is what a completed send produces: the broadcast hash and
// the final signed transaction.
type SendResult struct {
	TxHash      string
	Transaction Transaction
}

// Send implements spec §4.7's ten-step signing transaction flow.
func (b *Builder) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if (req.DestinationAddress == "") == (req.DestinationPaymentCode == "") {
		return nil, fmt.Errorf("exactly one of DestinationAddress or DestinationPaymentCode must be set")
	}

	tip, err := b.prov.GetBlockNumber(ctx, req.OriginZone)
	if err != nil {
		return nil, fmt.Errorf("get tip: %w", err)
	}

	spendable := b.store.SpendableFor(req.OriginZone, tip)
	if spendable < req.Amount {
		return nil, walleterrors.InsufficientFundsf(req.Amount - spendable)
	}

	available := b.store.SpendableOutpoints(req.OriginZone, tip)

	var minDenom *uint8
	if req.DestinationAddress != "" {
		md := models.MinConversionDenomination
		minDenom = &md
	}

	selection, err := coinselect.Select(coinselect.Request{
		TargetAmount:         req.Amount,
		Available:            available,
		MinDenominationToUse: minDenom,
		FeeEstimate:          0,
	})
	if err != nil {
		return nil, err
	}

	spendAddrs, err := b.allocateSpendAddresses(req, len(selection.SpendOutputs))
	if err != nil {
		return nil, err
	}
	changeAddrs, err := b.allocateChangeAddresses(req.Account, req.OriginZone, len(selection.ChangeOutputs))
	if err != nil {
		return nil, err
	}

	chainID, err := b.prov.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	var fee uint64
	for iteration := 0; iteration < maxFeeIterations; iteration++ {
		preview, err := buildPreview(chainID, selection, pubKeyResolver(b.book))
		if err != nil {
			return nil, err
		}
		fee, err = b.prov.EstimateFeeQi(ctx, preview)
		if err != nil {
			return nil, fmt.Errorf("estimate fee: %w", err)
		}

		reselected, err := coinselect.Select(coinselect.Request{
			TargetAmount:         req.Amount,
			Available:            available,
			MinDenominationToUse: minDenom,
			FeeEstimate:          2 * fee,
		})
		if err != nil {
			return nil, err
		}

		spendDelta := len(reselected.SpendOutputs) - len(selection.SpendOutputs)
		changeDelta := len(reselected.ChangeOutputs) - len(selection.ChangeOutputs)
		selection = reselected

		if len(reselected.SpendOutputs) != len(spendAddrs) {
			spendAddrs, err = b.allocateSpendAddresses(req, len(reselected.SpendOutputs))
			if err != nil {
				return nil, err
			}
		}
		if len(reselected.ChangeOutputs) != len(changeAddrs) {
			changeAddrs, err = b.allocateChangeAddresses(req.Account, req.OriginZone, len(reselected.ChangeOutputs))
			if err != nil {
				return nil, err
			}
		}

		if abs(spendDelta)+abs(changeDelta) <= convergenceThreshold {
			break
		}
	}

	outputs := make([]models.DenominatedOutput, 0, len(selection.SpendOutputs)+len(selection.ChangeOutputs))
	for i, o := range selection.SpendOutputs {
		o.Address = spendAddrs[i]
		outputs = append(outputs, o)
	}
	for i, o := range selection.ChangeOutputs {
		o.Address = changeAddrs[i]
		outputs = append(outputs, o)
	}

	wireInputs, err := inputsFromOutpoints(selection.Inputs, pubKeyResolver(b.book))
	if err != nil {
		return nil, err
	}

	tx := Transaction{
		ChainID: chainID,
		Inputs:  wireInputs,
		Outputs: outputsFromDenominated(outputs),
	}

	spentOutpoints := make([]models.Outpoint, len(selection.Inputs))
	for i, in := range selection.Inputs {
		spentOutpoints[i] = in.Outpoint
	}
	if err := b.store.MoveToPending(spentOutpoints); err != nil {
		return nil, fmt.Errorf("move inputs to pending: %w", err)
	}

	privs := make([]qicrypto.PrivateKey, len(selection.Inputs))
	for i, in := range selection.Inputs {
		info, err := b.book.GetByAddress(in.Address)
		if err != nil {
			return nil, err
		}
		priv, err := resolvePrivateKey(b.crypto, b.root, info)
		if err != nil {
			return nil, fmt.Errorf("resolve private key for input %d: %w", i, err)
		}
		privs[i] = priv
	}

	sig, err := sign(b.crypto, privs, tx)
	if err != nil {
		return nil, err
	}
	tx.Signature = sig

	serialized, err := Encode(tx)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	localHash := fmt.Sprintf("0x%x", b.crypto.Keccak256(serialized))

	broadcastHash, err := b.prov.Broadcast(ctx, req.OriginZone, serialized)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	if models.NormalizeAddress(broadcastHash) != models.NormalizeAddress(localHash) {
		return nil, fmt.Errorf("%w: adapter reported %s, locally computed %s", walleterrors.ErrHashMismatch, broadcastHash, localHash)
	}

	return &SendResult{TxHash: broadcastHash, Transaction: tx}, nil
}

// allocateSpendAddresses implements spec §4.7 step 3.
func (b *Builder) allocateSpendAddresses(req SendRequest, count int) ([]string, error) {
	if req.DestinationAddress != "" {
		addr := models.NormalizeAddress(req.DestinationAddress)
		addrs := make([]string, count)
		for i := range addrs {
			addrs[i] = addr
		}
		return addrs, nil
	}

	addrs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		info, err := b.channels.NextSendAddress(req.DestinationPaymentCode, req.OriginZone, req.Account, req.AddressUseChecker)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, info.Address)
	}
	return addrs, nil
}

// allocateChangeAddresses implements spec §4.7 step 4: prefer any
// UNUSED BIP44:change addresses already in the book, deriving more only
// once those are exhausted, marking every allocated address
// ATTEMPTED_USE.
func (b *Builder) allocateChangeAddresses(account uint32, z models.Zone, count int) ([]string, error) {
	addrs := make([]string, 0, count)

	for _, info := range b.book.ListByPath(models.PathBIP44Change) {
		if len(addrs) >= count {
			break
		}
		if info.Account == account && info.Zone == z && info.Status == models.StatusUnused {
			addrs = append(addrs, info.Address)
		}
	}

	for len(addrs) < count {
		startIndex := uint32(b.book.LastUsedIndex(models.PathBIP44Change, account, z) + 1)
		info, err := keyderivation.DeriveNextQiAddress(b.crypto, b.registry, b.root, account, z, true, startIndex)
		if err != nil {
			return nil, err
		}
		if err := b.book.Put(info); err != nil {
			return nil, err
		}
		addrs = append(addrs, info.Address)
	}

	for _, addr := range addrs {
		if err := b.book.SetStatus(addr, models.StatusAttemptedUse); err != nil {
			return nil, err
		}
	}
	return addrs, nil
}

// buildPreview assembles the fee-estimation request (spec §4.7 step 5):
// the candidate inputs with their pubkeys, and spend+change outputs
// with only their denominations (addresses may not be final yet).
func buildPreview(chainID uint64, selection models.SelectedCoins, pubKeyFor func(string) ([]byte, error)) (provider.TxPreview, error) {
	preview := provider.TxPreview{ChainID: chainID}

	for i, in := range selection.Inputs {
		pub, err := pubKeyFor(in.Address)
		if err != nil {
			return provider.TxPreview{}, fmt.Errorf("input %d: %w", i, err)
		}
		preview.Inputs = append(preview.Inputs, provider.TxPreviewInput{Outpoint: in.Outpoint, PubKey: pub})
	}

	for _, o := range selection.SpendOutputs {
		preview.Outputs = append(preview.Outputs, provider.TxPreviewOutput{Denomination: o.Denomination})
	}
	for _, o := range selection.ChangeOutputs {
		preview.Outputs = append(preview.Outputs, provider.TxPreviewOutput{Denomination: o.Denomination})
	}

	return preview, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
