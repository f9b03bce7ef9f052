package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
)

type mockNetwork struct {
	mock.Mock
}

func (m *mockNetwork) NetworkParameters(ctx context.Context) (*Params, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Params), args.Error(1)
}

func (m *mockNetwork) BuildPayment(ctx context.Context, sender, receiver common.Address, amount *big.Int, memo string, params *Params) (*UnsignedPayment, error) {
	args := m.Called(ctx, sender, receiver, amount, memo, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UnsignedPayment), args.Error(1)
}

func (m *mockNetwork) SignAndSubmit(ctx context.Context, unsigned *UnsignedPayment, signer Signer) (string, error) {
	args := m.Called(ctx, unsigned, signer)
	return args.String(0), args.Error(1)
}

func (m *mockNetwork) AwaitConfirmation(ctx context.Context, txID string, maxRounds uint64) error {
	args := m.Called(ctx, txID, maxRounds)
	return args.Error(0)
}

func (m *mockNetwork) LookupTransfer(ctx context.Context, txID string) (*RawTransfer, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RawTransfer), args.Error(1)
}

type keySigner struct {
	key *ecdsa.PrivateKey
}

func newKeySigner() *keySigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &keySigner{key: key}
}

func (s *keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *keySigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

type refusingSigner struct {
	address common.Address
	err     error
}

func (s *refusingSigner) Address() common.Address {
	return s.address
}

func (s *refusingSigner) SignTx(context.Context, *types.Transaction, *big.Int) (*types.Transaction, error) {
	return nil, s.err
}
