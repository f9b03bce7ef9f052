package funding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blues/ideafund/internal/config"
	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerAddress    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	investorAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) SubmitPayment(ctx context.Context, session ledger.Session, receiver string, amount decimal.Decimal, memo string) (string, error) {
	args := m.Called(ctx, session, receiver, amount, memo)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) VerifyTransaction(ctx context.Context, txID string) (*ledger.Transfer, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transfer), args.Error(1)
}

// transferTo 投资人向想法发起人的已确认转账
func transferTo(idea *model.IdeaModel, amount int64, txID string) *ledger.Transfer {
	return &ledger.Transfer{
		TxID:     txID,
		Sender:   investorAddress,
		Receiver: idea.OwnerAddress,
		Amount:   decimal.NewFromInt(amount),
		Memo:     investMemo(idea.Id),
	}
}

func amountOf(v int64) interface{} {
	want := decimal.NewFromInt(v)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// failingStore 包装内存存储，按需让写操作失败
type failingStore struct {
	*repository.MemoryStore
	failInsert bool
	failStatus bool
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) CreateInvestment(ctx context.Context, inv *model.InvestmentModel) error {
	if s.failInsert {
		return errDiskFull
	}
	return s.MemoryStore.CreateInvestment(ctx, inv)
}

func (s *failingStore) UpdateIdeaStatus(ctx context.Context, id string, from, to model.IdeaStatus) (bool, error) {
	if s.failStatus {
		return false, errDiskFull
	}
	return s.MemoryStore.UpdateIdeaStatus(ctx, id, from, to)
}

type fixture struct {
	store    *repository.MemoryStore
	payments *mockPayments
	clock    *testClock
	engine   *Engine
	session  ledger.Session
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(nil)
	return newFixtureWithStore(t, store, store, opts...)
}

func newFixtureWithStore(t *testing.T, mem *repository.MemoryStore, store repository.Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    mem,
		payments: &mockPayments{},
		clock:    &testClock{now: t0},
		session:  ledger.Session{Address: investorAddress},
	}
	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.engine = NewEngine(store, f.payments, opts...)
	t.Cleanup(func() { f.payments.AssertExpectations(t) })
	return f
}

func (f *fixture) createIdea(t *testing.T, goal int64, days int) *model.IdeaModel {
	t.Helper()
	idea, err := f.engine.CreateIdea(context.Background(), NewIdea{
		OwnerAddress: ownerAddress,
		Title:        "Solar kiosk",
		Description:  "Charging kiosks for markets",
		MoneyNeeded:  decimal.NewFromInt(goal),
		ShareOffered: "10% of net revenue",
		DurationDays: days,
	})
	require.NoError(t, err)
	return idea
}

func (f *fixture) expectPayment(amount int64, txID string) *mock.Call {
	return f.payments.On("SubmitPayment", mock.Anything, f.session, ownerAddress, amountOf(amount), mock.Anything).
		Return(txID, nil).Once()
}

func configOf(mode, limit string) config.FundingConfig {
	return config.FundingConfig{CommitMode: mode, AmountLimit: limit}
}
