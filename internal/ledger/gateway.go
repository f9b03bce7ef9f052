package ledger

import (
	"context"
	"math/big"

	"github.com/blues/ideafund/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// Signer 外部签名能力，网关本身不持有私钥
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Session 当前会话的钱包上下文，显式传入每次调用
type Session struct {
	Address string
	Signer  Signer
}

// Params 网络参数
type Params struct {
	ChainID  *big.Int
	GasPrice *big.Int
	Round    uint64
}

// UnsignedPayment 待签名的支付交易
type UnsignedPayment struct {
	Tx      *types.Transaction
	Sender  common.Address
	ChainID *big.Int
}

// Network 网关依赖的链上接口
type Network interface {
	NetworkParameters(ctx context.Context) (*Params, error)
	BuildPayment(ctx context.Context, sender, receiver common.Address, amount *big.Int, memo string, params *Params) (*UnsignedPayment, error)
	SignAndSubmit(ctx context.Context, unsigned *UnsignedPayment, signer Signer) (string, error)
	AwaitConfirmation(ctx context.Context, txID string, maxRounds uint64) error
	LookupTransfer(ctx context.Context, txID string) (*RawTransfer, error)
}

// RawTransfer 链上交易的转账内容，金额为最小单位
type RawTransfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Transfer 已确认的转账，金额为展示单位
type Transfer struct {
	TxID     string
	Sender   string
	Receiver string
	Amount   decimal.Decimal
	Memo     string
}

// Gateway 单笔支付：构建、委托签名、提交并等待确认
type Gateway struct {
	network   Network
	decimals  int32
	maxRounds uint64
}

// NewGateway 创建支付网关
func NewGateway(network Network, decimals int32, maxRounds uint64) *Gateway {
	if maxRounds == 0 {
		maxRounds = 10
	}
	return &Gateway{
		network:   network,
		decimals:  decimals,
		maxRounds: maxRounds,
	}
}

// SubmitPayment 从会话账户向 receiver 转账 amount（展示单位），返回已确认的交易ID。
// 失败时返回 *TransactionFailedError；不会自动重试。
// ctx 只在提交之前生效，交易一旦提交就无法取消，之后的等待不再响应取消。
func (g *Gateway) SubmitPayment(ctx context.Context, session Session, receiver string, amount decimal.Decimal, memo string) (string, error) {
	sender, err := authorize(session)
	if err != nil {
		return "", failed(StageAuthorize, "", err)
	}
	if !common.IsHexAddress(receiver) {
		return "", failed(StageBuild, "", ErrInvalidAddress)
	}
	to := common.HexToAddress(receiver)

	value, err := ToBaseUnits(amount, g.decimals)
	if err != nil {
		return "", failed(StageBuild, "", err)
	}

	params, err := g.network.NetworkParameters(ctx)
	if err != nil {
		return "", failed(StageParams, "", err)
	}

	unsigned, err := g.network.BuildPayment(ctx, sender, to, value, memo, params)
	if err != nil {
		return "", failed(StageBuild, "", err)
	}

	if err := ctx.Err(); err != nil {
		return "", failed(StageSubmit, "", err)
	}

	detached := context.WithoutCancel(ctx)
	txID, err := g.network.SignAndSubmit(detached, unsigned, session.Signer)
	if err != nil {
		return "", failed(StageSubmit, "", err)
	}
	logger.Info("Payment %s submitted: %s -> %s amount %s", txID, sender.Hex(), to.Hex(), amount)

	if err := g.network.AwaitConfirmation(detached, txID, g.maxRounds); err != nil {
		logger.Error("Payment %s not confirmed: %v", txID, err)
		return "", failed(StageConfirm, txID, err)
	}
	logger.Info("Payment %s confirmed", txID)

	return txID, nil
}

// VerifyTransaction 确认已提交的交易已上链并返回其转账内容，用于补录投资记录。
// 调用方必须核对付款方、收款方和金额。
func (g *Gateway) VerifyTransaction(ctx context.Context, txID string) (*Transfer, error) {
	if err := g.network.AwaitConfirmation(ctx, txID, 1); err != nil {
		return nil, failed(StageConfirm, txID, err)
	}
	raw, err := g.network.LookupTransfer(ctx, txID)
	if err != nil {
		return nil, failed(StageConfirm, txID, err)
	}

	value := raw.Value
	if value == nil {
		value = new(big.Int)
	}
	return &Transfer{
		TxID:     txID,
		Sender:   raw.From.Hex(),
		Receiver: raw.To.Hex(),
		Amount:   FromBaseUnits(value, g.decimals),
		Memo:     string(raw.Data),
	}, nil
}

func authorize(session Session) (common.Address, error) {
	if session.Signer == nil || !common.IsHexAddress(session.Address) {
		return common.Address{}, ErrUnauthorizedSigner
	}
	sender := common.HexToAddress(session.Address)
	if sender != session.Signer.Address() {
		return common.Address{}, ErrUnauthorizedSigner
	}
	return sender, nil
}
