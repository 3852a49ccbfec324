// Package provider defines Provider, the external contract the Qi
// wallet core consumes for everything that crosses the network (spec
// §4.4): block/tip lookups, outpoint queries and delta sync, fee
// estimation, and broadcast. The core never talks to a node directly —
// every adapter-facing call in scanner and txbuilder goes
// through this interface, injected at wallet construction (spec §9:
// "the wallet owns a Crypto handle and a Provider handle").
package provider

import (
	"context"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
)

// Provider is the minimum set of operations the core assumes a remote
// node offers (spec §4.4). Implementations own retries, batching, and
// cancellation; the core supplies only request shapes and propagates
// the first error it receives (spec §5: "the core does not retry").
//
// Contract:
//   - Every method is safe to call concurrently.
//   - Errors returned across this boundary SHOULD be (or wrap) a
//     *walleterrors.ProviderError carrying a zone tag and retry
//     classification, so the core and its callers can tell transient
//     failures from ones requiring user intervention.
//   - Context cancellation aborts the call; partially-applied state is
//     never left in the Provider itself (it is stateless from the
//     core's point of view).
type Provider interface {
	// GetBlockNumber returns the current tip height for zone z.
	GetBlockNumber(ctx context.Context, z models.Zone) (uint64, error)

	// GetBlock resolves tag ("latest" or a block hash) to a BlockRef
	// for zone z.
	GetBlock(ctx context.Context, z models.Zone, tag string) (models.BlockRef, error)

	// GetOutpointsByAddress returns every outpoint the node currently
	// lists as owned by addr. An address with no current outpoints
	// returns an empty, non-nil slice and a nil error.
	GetOutpointsByAddress(ctx context.Context, addr string) ([]models.Outpoint, error)

	// GetOutpointDeltas returns, for each of addrs, the outpoints
	// created and deleted between fromBlockHash and the zone's current
	// tip (spec §4.5 step 3). fromBlockHash may be a specific hash or
	// the sentinel "latest".
	GetOutpointDeltas(ctx context.Context, z models.Zone, addrs []string, fromBlockHash string) (map[string]OutpointDelta, error)

	// EstimateFeeQi requests a fee estimate for preview, a partially
	// populated transaction carrying input pubkeys and output
	// denominations but no signature (spec §4.7 step 5).
	EstimateFeeQi(ctx context.Context, preview TxPreview) (uint64, error)

	// Broadcast submits a serialized, signed transaction to zone z and
	// returns the node-assigned transaction hash.
	Broadcast(ctx context.Context, z models.Zone, serializedTx []byte) (string, error)

	// GetChainID returns the chain identifier the transaction wire
	// format embeds (spec §6).
	GetChainID(ctx context.Context) (uint64, error)
}

// OutpointDelta is one address's created/deleted outpoint sets between
// two blocks (spec §4.5 step 3, §6 "Delta sync").
type OutpointDelta struct {
	Created []models.Outpoint
	Deleted []models.Outpoint
}

// TxPreview is the fee-estimation request shape (spec §4.7 step 5):
// enough of the prospective transaction to price it, without a
// signature.
type TxPreview struct {
	ChainID uint64
	Inputs  []TxPreviewInput
	Outputs []TxPreviewOutput
}

// TxPreviewInput carries the information fee estimation needs about one
// candidate input: its outpoint and the spending pubkey (no signature
// yet exists at preview time).
type TxPreviewInput struct {
	Outpoint models.Outpoint
	PubKey   []byte
}

// TxPreviewOutput carries only a destination denomination; addresses
// may not be finalized yet during the fee-estimation loop.
type TxPreviewOutput struct {
	Denomination uint8
}
