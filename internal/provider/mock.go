package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
)

// Mock is an in-memory Provider for tests, adapted from the teacher's
// MockRPCClient (src/chainadapter/rpc/mock_client.go): per-method
// configured responses/errors plus call counts, generalized from a
// generic JSON-RPC method table to Provider's typed operations.
type Mock struct {
	mu sync.RWMutex

	blockNumber map[models.Zone]uint64
	blocks      map[models.Zone]map[string]models.BlockRef
	outpoints   map[string][]models.Outpoint // address -> outpoints
	deltas      map[models.Zone]map[string]OutpointDelta
	feeQi       uint64
	chainID     uint64
	broadcasts  []broadcastCall

	// broadcastHash overrides the generated hash Broadcast returns, so
	// tests can exercise either the matching path or a HashMismatch.
	broadcastHash string

	errors    map[string]error
	callCount map[string]int
}

type broadcastCall struct {
	Zone models.Zone
	Tx   []byte
}

// NewMock constructs an empty Mock; configure it with the Set* helpers
// before use.
func NewMock() *Mock {
	return &Mock{
		blockNumber: make(map[models.Zone]uint64),
		blocks:      make(map[models.Zone]map[string]models.BlockRef),
		outpoints:   make(map[string][]models.Outpoint),
		deltas:      make(map[models.Zone]map[string]OutpointDelta),
		errors:      make(map[string]error),
		callCount:   make(map[string]int),
	}
}

func (m *Mock) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[method]++
	if err, ok := m.errors[method]; ok {
		return err
	}
	return nil
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[method]
}

// SetError configures method to fail with err on its next call onward.
func (m *Mock) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// SetBlockNumber configures the current tip height for z.
func (m *Mock) SetBlockNumber(z models.Zone, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockNumber[z] = n
}

// SetBlock configures the BlockRef returned for (z, tag).
func (m *Mock) SetBlock(z models.Zone, tag string, ref models.BlockRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blocks[z] == nil {
		m.blocks[z] = make(map[string]models.BlockRef)
	}
	m.blocks[z][tag] = ref
}

// SetOutpoints configures the outpoints GetOutpointsByAddress returns
// for addr.
func (m *Mock) SetOutpoints(addr string, outpoints []models.Outpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outpoints[addr] = outpoints
}

// SetDelta configures the delta GetOutpointDeltas returns for (z, addr).
func (m *Mock) SetDelta(z models.Zone, addr string, delta OutpointDelta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deltas[z] == nil {
		m.deltas[z] = make(map[string]OutpointDelta)
	}
	m.deltas[z][addr] = delta
}

// SetFeeQi configures the flat fee EstimateFeeQi returns.
func (m *Mock) SetFeeQi(fee uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeQi = fee
}

// SetBroadcastHash overrides the hash Broadcast returns on every
// subsequent call, instead of the default "0xmockhash<n>" sequence.
func (m *Mock) SetBroadcastHash(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastHash = hash
}

// SetChainID configures the value GetChainID returns.
func (m *Mock) SetChainID(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainID = id
}

// Broadcasts returns every transaction submitted via Broadcast so far.
func (m *Mock) Broadcasts() []broadcastCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]broadcastCall, len(m.broadcasts))
	copy(out, m.broadcasts)
	return out
}

func (m *Mock) GetBlockNumber(_ context.Context, z models.Zone) (uint64, error) {
	if err := m.record("GetBlockNumber"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blockNumber[z], nil
}

func (m *Mock) GetBlock(_ context.Context, z models.Zone, tag string) (models.BlockRef, error) {
	if err := m.record("GetBlock"); err != nil {
		return models.BlockRef{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.blocks[z][tag]
	if !ok {
		return models.BlockRef{}, fmt.Errorf("mock: no block configured for zone %s tag %q", z, tag)
	}
	return ref, nil
}

func (m *Mock) GetOutpointsByAddress(_ context.Context, addr string) ([]models.Outpoint, error) {
	if err := m.record("GetOutpointsByAddress"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.outpoints[addr]
	if out == nil {
		out = []models.Outpoint{}
	}
	return out, nil
}

func (m *Mock) GetOutpointDeltas(_ context.Context, z models.Zone, addrs []string, _ string) (map[string]OutpointDelta, error) {
	if err := m.record("GetOutpointDeltas"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]OutpointDelta, len(addrs))
	for _, addr := range addrs {
		out[addr] = m.deltas[z][addr]
	}
	return out, nil
}

func (m *Mock) EstimateFeeQi(_ context.Context, _ TxPreview) (uint64, error) {
	if err := m.record("EstimateFeeQi"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.feeQi, nil
}

func (m *Mock) Broadcast(_ context.Context, z models.Zone, serializedTx []byte) (string, error) {
	if err := m.record("Broadcast"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, broadcastCall{Zone: z, Tx: append([]byte(nil), serializedTx...)})
	if m.broadcastHash != "" {
		return m.broadcastHash, nil
	}
	return fmt.Sprintf("0xmockhash%d", len(m.broadcasts)), nil
}

func (m *Mock) GetChainID(_ context.Context) (uint64, error) {
	if err := m.record("GetChainID"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chainID, nil
}
