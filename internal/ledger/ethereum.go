package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/ideafund/internal/config"
	"github.com/blues/ideafund/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var supportedChainTypes = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism"}

// ChainClient EthNetwork 使用的 ethclient 方法
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// EthNetwork 基于 EVM 链的 Network 实现
type EthNetwork struct {
	client        ChainClient
	confirmations uint64
	pollInterval  time.Duration
	close         func()
}

// NewEthNetwork 使用已有客户端创建
func NewEthNetwork(client ChainClient, confirmations uint64, pollInterval time.Duration) *EthNetwork {
	if confirmations == 0 {
		confirmations = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &EthNetwork{
		client:        client,
		confirmations: confirmations,
		pollInterval:  pollInterval,
		close:         func() {},
	}
}

// Dial 连接链节点并校验链ID
func Dial(ctx context.Context, cfg config.ChainConfig) (*EthNetwork, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}
	if !isSupportedChainType(cfg.ChainType) {
		return nil, fmt.Errorf("unsupported chain type %s, supported types: %v", cfg.ChainType, supportedChainTypes)
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}

	// 测试连接
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}
	if cfg.ChainId != 0 && chainID.Int64() != cfg.ChainId {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: configured %d, node reports %s", cfg.ChainId, chainID)
	}

	logger.Info("Successfully created %s client (chain id %s)", cfg.ChainType, chainID)
	network := NewEthNetwork(client, cfg.Confirmations, cfg.PollEvery())
	network.close = client.Close
	return network, nil
}

func isSupportedChainType(chainType string) bool {
	for _, t := range supportedChainTypes {
		if t == chainType {
			return true
		}
	}
	return false
}

// NetworkParameters 获取链ID、建议 gas 价格和当前区块
func (n *EthNetwork) NetworkParameters(ctx context.Context) (*Params, error) {
	chainID, err := n.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	gasPrice, err := n.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	round, err := n.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	return &Params{ChainID: chainID, GasPrice: gasPrice, Round: round}, nil
}

// BuildPayment 构建转账交易，备注写入交易 data 字段
func (n *EthNetwork) BuildPayment(ctx context.Context, sender, receiver common.Address, amount *big.Int, memo string, params *Params) (*UnsignedPayment, error) {
	nonce, err := n.client.PendingNonceAt(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", sender.Hex(), err)
	}

	data := []byte(memo)
	gas, err := n.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  sender,
		To:    &receiver,
		Value: amount,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: params.GasPrice,
		Gas:      gas,
		To:       &receiver,
		Value:    amount,
		Data:     data,
	})
	return &UnsignedPayment{Tx: tx, Sender: sender, ChainID: params.ChainID}, nil
}

// SignAndSubmit 委托签名后广播
func (n *EthNetwork) SignAndSubmit(ctx context.Context, unsigned *UnsignedPayment, signer Signer) (string, error) {
	signed, err := signer.SignTx(ctx, unsigned.Tx, unsigned.ChainID)
	if err != nil {
		return "", fmt.Errorf("signing refused: %w", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(unsigned.ChainID), signed)
	if err != nil {
		return "", fmt.Errorf("invalid signature: %w", err)
	}
	if from != unsigned.Sender {
		return "", fmt.Errorf("%w: signed by %s", ErrUnauthorizedSigner, from.Hex())
	}

	if err := n.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// AwaitConfirmation 轮询交易回执，直到达到确认数；超过 maxRounds 个区块仍未确认则超时
func (n *EthNetwork) AwaitConfirmation(ctx context.Context, txID string, maxRounds uint64) error {
	hash := common.HexToHash(txID)

	start, err := n.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block number: %w", err)
	}

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		current, err := n.client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}

		receipt, err := n.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return ErrTransactionReverted
			}
			if receipt.BlockNumber != nil && current+1 >= receipt.BlockNumber.Uint64()+n.confirmations {
				return nil
			}
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return fmt.Errorf("failed to get receipt: %w", err)
		}

		if current >= start+maxRounds {
			return ErrConfirmationTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LookupTransfer 读取交易的付款方、收款方、金额和 data 字段
func (n *EthNetwork) LookupTransfer(ctx context.Context, txID string) (*RawTransfer, error) {
	tx, pending, err := n.client.TransactionByHash(ctx, common.HexToHash(txID))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txID, err)
	}
	if pending {
		return nil, fmt.Errorf("transaction %s is still pending", txID)
	}
	if tx.To() == nil {
		return nil, fmt.Errorf("transaction %s is a contract creation", txID)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of %s: %w", txID, err)
	}
	return &RawTransfer{From: from, To: *tx.To(), Value: tx.Value(), Data: tx.Data()}, nil
}

// Close 关闭连接
func (n *EthNetwork) Close() {
	n.close()
}
