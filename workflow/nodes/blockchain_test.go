package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/flowmesh/workflow"
)

// fakeChainReader is a scriptable ChainReader.
type fakeChainReader struct {
	block    uint64
	gasPrice *big.Int
	balance  *big.Int
	chainID  *big.Int
	err      error
}

func (f *fakeChainReader) LatestBlock(context.Context) (uint64, error) {
	return f.block, f.err
}

func (f *fakeChainReader) GasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, f.err
}

func (f *fakeChainReader) Balance(context.Context, string) (*big.Int, error) {
	return f.balance, f.err
}

func (f *fakeChainReader) ChainID(context.Context) (*big.Int, error) {
	if f.chainID == nil {
		return nil, errors.New("no chain id")
	}
	return f.chainID, nil
}

const testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestBlockchainMonitor_ConfigureValidation(t *testing.T) {
	t.Parallel()
	def := NewBlockchainMonitorDefinition(nil, nil)

	tests := []struct {
		name   string
		params string
	}{
		{"empty", ``},
		{"unknown action", `{"action":"mine"}`},
		{"balance without address", `{"action":"balance"}`},
		{"balance bad address", `{"action":"balance","address":"not-hex"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := def.CreateInstance()
			require.NoError(t, err)
			err = inst.Configure(json.RawMessage(tt.params))
			require.Error(t, err)
			var cfgErr *workflow.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestBlockchainMonitor_LatestBlock(t *testing.T) {
	t.Parallel()
	reader := &fakeChainReader{block: 21_000_000, chainID: big.NewInt(1)}
	def := NewBlockchainMonitorDefinition(reader, zaptest.NewLogger(t))

	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"action":"latest_block","network":"mainnet"}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var result struct {
		Action  string `json:"action_performed"`
		Network string `json:"network"`
		Block   uint64 `json:"block_number"`
		ChainID string `json:"chain_id"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &result))
	assert.Equal(t, "latest_block", result.Action)
	assert.Equal(t, "mainnet", result.Network)
	assert.Equal(t, uint64(21_000_000), result.Block)
	assert.Equal(t, "1", result.ChainID)
}

func TestBlockchainMonitor_GasPrice(t *testing.T) {
	t.Parallel()
	reader := &fakeChainReader{gasPrice: big.NewInt(25_000_000_000)}
	def := NewBlockchainMonitorDefinition(reader, zaptest.NewLogger(t))

	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"action":"gas_price"}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var result struct {
		GasPriceWei string `json:"gas_price_wei"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &result))
	assert.Equal(t, "25000000000", result.GasPriceWei)
}

func TestBlockchainMonitor_Balance(t *testing.T) {
	t.Parallel()
	reader := &fakeChainReader{balance: big.NewInt(1_500_000)}
	def := NewBlockchainMonitorDefinition(reader, zaptest.NewLogger(t))

	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"action":"balance","address":"`+testAddress+`"}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var result struct {
		Address    string `json:"address"`
		BalanceWei string `json:"balance_wei"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &result))
	assert.Equal(t, testAddress, result.Address)
	assert.Equal(t, "1500000", result.BalanceWei)
}

func TestBlockchainMonitor_ReaderErrorPropagates(t *testing.T) {
	t.Parallel()
	reader := &fakeChainReader{err: errors.New("rpc unavailable")}
	def := NewBlockchainMonitorDefinition(reader, zaptest.NewLogger(t))

	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"action":"latest_block"}`)))

	_, err = inst.Execute(context.Background(), testContext(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
}

func TestBlockchainMonitor_SimulatedFallback(t *testing.T) {
	t.Parallel()
	// 无 reader、无 rpc_url：退化到模拟链
	def := NewBlockchainMonitorDefinition(nil, zaptest.NewLogger(t))

	inst, err := def.CreateInstance()
	require.NoError(t, err)
	require.NoError(t, inst.Configure(json.RawMessage(`{"action":"latest_block"}`)))

	out, err := inst.Execute(context.Background(), testContext(`{}`))
	require.NoError(t, err)

	var result struct {
		Block   uint64 `json:"block_number"`
		ChainID string `json:"chain_id"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &result))
	assert.Greater(t, result.Block, uint64(19_000_000))
	assert.Equal(t, "1", result.ChainID)
}
