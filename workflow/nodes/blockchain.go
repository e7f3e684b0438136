package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/BaSui01/flowmesh/workflow"
)

// ChainReader is the read-only surface the monitor node needs from a
// blockchain client. No transactions are ever sent through it.
type ChainReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// BlockchainMonitorDefinition 链上监控节点
// 只做读取：最新区块、Gas 价格、账户余额。未配置 RPC 时使用模拟数据。
type BlockchainMonitorDefinition struct {
	reader ChainReader
	logger *zap.Logger
}

// NewBlockchainMonitorDefinition wires a chain reader. A nil reader makes
// every instance fall back to simulated chain data unless its parameters
// name an rpc_url.
func NewBlockchainMonitorDefinition(reader ChainReader, logger *zap.Logger) BlockchainMonitorDefinition {
	if logger == nil {
		logger = zap.NewNop()
	}
	return BlockchainMonitorDefinition{
		reader: reader,
		logger: logger.With(zap.String("component", "blockchain_monitor")),
	}
}

func (BlockchainMonitorDefinition) Type() string        { return "blockchain_monitor" }
func (BlockchainMonitorDefinition) DisplayName() string { return "Blockchain Monitor" }
func (BlockchainMonitorDefinition) Description() string {
	return "Monitors chain state: blocks, gas prices and balances"
}

func (d BlockchainMonitorDefinition) CreateInstance() (workflow.Instance, error) {
	return &blockchainMonitorInstance{reader: d.reader, logger: d.logger}, nil
}

type blockchainParams struct {
	Action  string `json:"action"`
	Network string `json:"network,omitempty"`
	RPCURL  string `json:"rpc_url,omitempty"`
	Address string `json:"address,omitempty"`
}

type blockchainMonitorInstance struct {
	reader ChainReader
	logger *zap.Logger
	params blockchainParams
}

func (b *blockchainMonitorInstance) Configure(params json.RawMessage) error {
	if len(params) == 0 {
		return &workflow.ConfigError{Field: "blockchain_monitor", Reason: "parameters required"}
	}
	if err := json.Unmarshal(params, &b.params); err != nil {
		return &workflow.ConfigError{Field: "blockchain_monitor", Reason: err.Error()}
	}
	switch b.params.Action {
	case "latest_block", "gas_price":
	case "balance":
		if b.params.Address == "" {
			return &workflow.ConfigError{Field: "blockchain_monitor.address", Reason: "address required for balance action"}
		}
		if !common.IsHexAddress(b.params.Address) {
			return &workflow.ConfigError{Field: "blockchain_monitor.address", Reason: "not a hex address: " + b.params.Address}
		}
	default:
		return &workflow.ConfigError{Field: "blockchain_monitor.action", Reason: "unknown action: " + b.params.Action}
	}
	return nil
}

func (b *blockchainMonitorInstance) Execute(ctx context.Context, _ *workflow.ExecutionContext) (*workflow.NodeOutput, error) {
	reader := b.reader
	if reader == nil && b.params.RPCURL != "" {
		ethReader, err := NewEthChainReader(ctx, b.params.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial rpc: %w", err)
		}
		defer ethReader.Close()
		reader = ethReader
	}
	if reader == nil {
		reader = simulatedChain
	}

	result := map[string]any{
		"action_performed": b.params.Action,
		"network":          b.params.Network,
	}

	switch b.params.Action {
	case "latest_block":
		block, err := reader.LatestBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest block: %w", err)
		}
		result["block_number"] = block
	case "gas_price":
		price, err := reader.GasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
		result["gas_price_wei"] = price.String()
	case "balance":
		balance, err := reader.Balance(ctx, b.params.Address)
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		result["address"] = b.params.Address
		result["balance_wei"] = balance.String()
	}

	if chainID, err := reader.ChainID(ctx); err == nil {
		result["chain_id"] = chainID.String()
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &workflow.NodeOutput{Data: out}, nil
}

// ---------------------------------------------------------------------------
// ethclient-backed reader
// ---------------------------------------------------------------------------

// EthChainReader reads chain state through go-ethereum's RPC client.
type EthChainReader struct {
	client *ethclient.Client
}

// NewEthChainReader dials an RPC endpoint.
func NewEthChainReader(ctx context.Context, rpcURL string) (*EthChainReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &EthChainReader{client: client}, nil
}

func (r *EthChainReader) LatestBlock(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

func (r *EthChainReader) GasPrice(ctx context.Context) (*big.Int, error) {
	return r.client.SuggestGasPrice(ctx)
}

func (r *EthChainReader) Balance(ctx context.Context, address string) (*big.Int, error) {
	return r.client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

func (r *EthChainReader) ChainID(ctx context.Context) (*big.Int, error) {
	return r.client.ChainID(ctx)
}

// Close releases the underlying RPC connection.
func (r *EthChainReader) Close() {
	r.client.Close()
}

// ---------------------------------------------------------------------------
// Simulated reader
// ---------------------------------------------------------------------------

var simulatedChain = &simulatedChainReader{blockBase: 19_000_000}

// simulatedChainReader fabricates plausible chain data so workflows run
// without network access.
type simulatedChainReader struct {
	blockBase uint64
	calls     atomic.Uint64
}

func (s *simulatedChainReader) LatestBlock(context.Context) (uint64, error) {
	return s.blockBase + s.calls.Add(1), nil
}

func (s *simulatedChainReader) GasPrice(context.Context) (*big.Int, error) {
	// ~20 gwei with mild drift per call.
	drift := s.calls.Add(1) % 5
	return new(big.Int).SetUint64(20_000_000_000 + drift*1_000_000_000), nil
}

func (s *simulatedChainReader) Balance(_ context.Context, address string) (*big.Int, error) {
	seed := uint64(len(address))
	return new(big.Int).SetUint64(seed * 1_000_000_000_000_000), nil
}

func (s *simulatedChainReader) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
