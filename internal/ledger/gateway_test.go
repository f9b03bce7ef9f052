package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const receiver = "0x00000000000000000000000000000000000000bb"

func TestSubmitPayment(t *testing.T) {
	signer := newKeySigner()
	session := Session{Address: signer.Address().Hex(), Signer: signer}
	params := &Params{ChainID: big.NewInt(1), GasPrice: big.NewInt(1), Round: 7}
	unsigned := &UnsignedPayment{Sender: signer.Address(), ChainID: big.NewInt(1)}
	amount := decimal.RequireFromString("1.5")
	baseUnits := big.NewInt(1_500_000)

	t.Run("Success", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		network.On("NetworkParameters", mock.Anything).Return(params, nil).Once()
		network.On("BuildPayment", mock.Anything, signer.Address(), common.HexToAddress(receiver), baseUnits, "memo", params).Return(unsigned, nil).Once()
		network.On("SignAndSubmit", mock.Anything, unsigned, signer).Return("0xabc", nil).Once()
		network.On("AwaitConfirmation", mock.Anything, "0xabc", uint64(5)).Return(nil).Once()

		txID, err := gateway.SubmitPayment(context.Background(), session, receiver, amount, "memo")

		require.NoError(t, err)
		assert.Equal(t, "0xabc", txID)
		network.AssertExpectations(t)
	})

	t.Run("Sender is not the session signer", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		other := Session{Address: "0x00000000000000000000000000000000000000cc", Signer: signer}
		_, err := gateway.SubmitPayment(context.Background(), other, receiver, amount, "memo")

		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.ErrorIs(t, err, ErrUnauthorizedSigner)
		network.AssertNotCalled(t, "NetworkParameters", mock.Anything)
	})

	t.Run("Too much precision", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		_, err := gateway.SubmitPayment(context.Background(), session, receiver, decimal.RequireFromString("0.0000001"), "memo")

		assert.ErrorIs(t, err, ErrInvalidAmount)
		network.AssertNotCalled(t, "NetworkParameters", mock.Anything)
	})

	t.Run("Signing refused", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)
		refusal := errors.New("user rejected")

		network.On("NetworkParameters", mock.Anything).Return(params, nil).Once()
		network.On("BuildPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(unsigned, nil).Once()
		network.On("SignAndSubmit", mock.Anything, unsigned, signer).Return("", refusal).Once()

		_, err := gateway.SubmitPayment(context.Background(), session, receiver, amount, "memo")

		var failure *TransactionFailedError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, StageSubmit, failure.Stage)
		assert.ErrorIs(t, err, refusal)
		network.AssertNotCalled(t, "AwaitConfirmation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Confirmation timeout keeps the transaction id", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		network.On("NetworkParameters", mock.Anything).Return(params, nil).Once()
		network.On("BuildPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(unsigned, nil).Once()
		network.On("SignAndSubmit", mock.Anything, unsigned, signer).Return("0xabc", nil).Once()
		network.On("AwaitConfirmation", mock.Anything, "0xabc", uint64(5)).Return(ErrConfirmationTimeout).Once()

		txID, err := gateway.SubmitPayment(context.Background(), session, receiver, amount, "memo")

		assert.Empty(t, txID)
		var failure *TransactionFailedError
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, StageConfirm, failure.Stage)
		assert.Equal(t, "0xabc", failure.TxID)
		assert.ErrorIs(t, err, ErrConfirmationTimeout)
		network.AssertExpectations(t)
	})

	t.Run("Cancelled before submission", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)
		ctx, cancel := context.WithCancel(context.Background())

		network.On("NetworkParameters", mock.Anything).Return(params, nil).Once()
		network.On("BuildPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(unsigned, nil).Once()

		_, err := gateway.SubmitPayment(ctx, session, receiver, amount, "memo")

		assert.ErrorIs(t, err, context.Canceled)
		network.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Submitted payment ignores later cancellation", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)
		ctx, cancel := context.WithCancel(context.Background())

		network.On("NetworkParameters", mock.Anything).Return(params, nil).Once()
		network.On("BuildPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(unsigned, nil).Once()
		network.On("SignAndSubmit", mock.Anything, unsigned, signer).
			Run(func(mock.Arguments) { cancel() }).
			Return("0xabc", nil).Once()
		network.On("AwaitConfirmation", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "0xabc", uint64(5)).Return(nil).Once()

		txID, err := gateway.SubmitPayment(ctx, session, receiver, amount, "memo")

		require.NoError(t, err)
		assert.Equal(t, "0xabc", txID)
		network.AssertExpectations(t)
	})
}

func TestVerifyTransaction(t *testing.T) {
	sender := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("Returns the confirmed transfer", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		network.On("AwaitConfirmation", mock.Anything, "0xabc", uint64(1)).Return(nil).Once()
		network.On("LookupTransfer", mock.Anything, "0xabc").Return(&RawTransfer{
			From:  sender,
			To:    common.HexToAddress(receiver),
			Value: big.NewInt(2_500_000),
			Data:  []byte("memo"),
		}, nil).Once()

		transfer, err := gateway.VerifyTransaction(context.Background(), "0xabc")

		require.NoError(t, err)
		assert.Equal(t, sender.Hex(), transfer.Sender)
		assert.Equal(t, common.HexToAddress(receiver).Hex(), transfer.Receiver)
		assert.True(t, transfer.Amount.Equal(decimal.RequireFromString("2.5")))
		assert.Equal(t, "memo", transfer.Memo)
		network.AssertExpectations(t)
	})

	t.Run("Unconfirmed transaction", func(t *testing.T) {
		network := new(mockNetwork)
		gateway := NewGateway(network, 6, 5)

		network.On("AwaitConfirmation", mock.Anything, "0xabc", uint64(1)).Return(ErrTransactionReverted).Once()

		_, err := gateway.VerifyTransaction(context.Background(), "0xabc")

		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.ErrorIs(t, err, ErrTransactionReverted)
		network.AssertNotCalled(t, "LookupTransfer", mock.Anything, mock.Anything)
	})
}

func TestBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(decimal.RequireFromString("12.345678"), 6)
	require.NoError(t, err)
	assert.Equal(t, "12345678", v.String())

	v, err = ToBaseUnits(decimal.NewFromInt(2), 18)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", v.String())

	_, err = ToBaseUnits(decimal.Zero, 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.True(t, FromBaseUnits(big.NewInt(1_500_000), 6).Equal(decimal.RequireFromString("1.5")))
}
