package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-qi-wallet/internal/models"
)

func TestMockBlockNumberAndBlock(t *testing.T) {
	m := NewMock()
	m.SetBlockNumber(models.ZoneCyprus1, 42)
	m.SetBlock(models.ZoneCyprus1, "latest", models.BlockRef{Hash: "0xtip", Number: 42})

	n, err := m.GetBlockNumber(context.Background(), models.ZoneCyprus1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	ref, err := m.GetBlock(context.Background(), models.ZoneCyprus1, "latest")
	require.NoError(t, err)
	assert.Equal(t, "0xtip", ref.Hash)
}

func TestMockOutpointsByAddressDefaultsEmpty(t *testing.T) {
	m := NewMock()
	out, err := m.GetOutpointsByAddress(context.Background(), "0xnever-configured")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestMockErrorInjection(t *testing.T) {
	m := NewMock()
	m.SetError("GetBlockNumber", errors.New("boom"))

	_, err := m.GetBlockNumber(context.Background(), models.ZoneCyprus1)
	assert.Error(t, err)
	assert.Equal(t, 1, m.CallCount("GetBlockNumber"))
}

func TestMockBroadcastHashOverride(t *testing.T) {
	m := NewMock()
	m.SetBroadcastHash("0xexpected")

	hash, err := m.Broadcast(context.Background(), models.ZoneCyprus1, []byte("tx"))
	require.NoError(t, err)
	assert.Equal(t, "0xexpected", hash)
	assert.Len(t, m.Broadcasts(), 1)
}

func TestMockDeltaLookup(t *testing.T) {
	m := NewMock()
	m.SetDelta(models.ZoneCyprus1, "0xaddr", OutpointDelta{
		Created: []models.Outpoint{{TxHash: "0xnew", Index: 0}},
	})

	deltas, err := m.GetOutpointDeltas(context.Background(), models.ZoneCyprus1, []string{"0xaddr", "0xother"}, "0xprev")
	require.NoError(t, err)
	assert.Len(t, deltas["0xaddr"].Created, 1)
	assert.Empty(t, deltas["0xother"].Created)
}
