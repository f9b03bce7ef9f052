package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/ideafund/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrUnknownAccount is returned when no signer is registered for an address.
	ErrUnknownAccount = errors.New("no signer registered for address")

	// ErrInvalidToken is returned when an access token matches no account.
	ErrInvalidToken = errors.New("invalid access token")

	ErrDuplicateToken = errors.New("access token already bound to another account")
)

// KeyedSigner 持有私钥的签名器
type KeyedSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeyedSigner 从十六进制私钥创建签名器
func NewKeyedSigner(hexKey string) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &KeyedSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeyedSigner) Address() common.Address {
	return s.address
}

// SignTx 使用 EIP-155 签名
func (s *KeyedSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// Keyring 按地址管理签名器，每个账户绑定一个访问令牌
type Keyring struct {
	mu      sync.RWMutex
	signers map[common.Address]ledger.Signer
	tokens  map[[sha256.Size]byte]common.Address
}

// NewKeyring 从配置的私钥列表和对应的令牌列表创建
func NewKeyring(hexKeys, tokens []string) (*Keyring, error) {
	k := &Keyring{
		signers: make(map[common.Address]ledger.Signer),
		tokens:  make(map[[sha256.Size]byte]common.Address),
	}
	for i, hexKey := range hexKeys {
		if strings.TrimSpace(hexKey) == "" {
			continue
		}
		signer, err := NewKeyedSigner(strings.TrimSpace(hexKey))
		if err != nil {
			return nil, fmt.Errorf("wallet key %d: %w", i, err)
		}
		if i >= len(tokens) || strings.TrimSpace(tokens[i]) == "" {
			return nil, fmt.Errorf("wallet key %d (%s) has no access token", i, signer.Address().Hex())
		}
		if err := k.Add(signer, strings.TrimSpace(tokens[i])); err != nil {
			return nil, fmt.Errorf("wallet key %d: %w", i, err)
		}
	}
	return k, nil
}

// Add 注册签名器及其访问令牌
func (k *Keyring) Add(signer ledger.Signer, token string) error {
	digest := sha256.Sum256([]byte(token))

	k.mu.Lock()
	defer k.mu.Unlock()
	if owner, ok := k.tokens[digest]; ok && owner != signer.Address() {
		return ErrDuplicateToken
	}
	k.signers[signer.Address()] = signer
	k.tokens[digest] = signer.Address()
	return nil
}

// Addresses 已注册的地址
func (k *Keyring) Addresses() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	addresses := make([]string, 0, len(k.signers))
	for address := range k.signers {
		addresses = append(addresses, address.Hex())
	}
	return addresses
}

// Authenticate 按访问令牌取得该账户的签名会话
func (k *Keyring) Authenticate(token string) (ledger.Session, error) {
	if token == "" {
		return ledger.Session{}, ErrInvalidToken
	}
	digest := sha256.Sum256([]byte(token))

	k.mu.RLock()
	defer k.mu.RUnlock()
	address, ok := k.tokens[digest]
	if !ok {
		return ledger.Session{}, ErrInvalidToken
	}
	signer, ok := k.signers[address]
	if !ok {
		return ledger.Session{}, fmt.Errorf("%w: %s", ErrUnknownAccount, address.Hex())
	}
	return ledger.Session{Address: address.Hex(), Signer: signer}, nil
}
