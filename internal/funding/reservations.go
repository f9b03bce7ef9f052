package funding

import (
	"sync"

	"github.com/shopspring/decimal"
)

// reservations 按想法记录在途投资金额。锁只在校验与预留期间持有，不跨越链上等待。
type reservations struct {
	mu      sync.Mutex
	entries map[string]*reservation
}

type reservation struct {
	mu      sync.Mutex
	pending decimal.Decimal
	refs    int
}

func newReservations() *reservations {
	return &reservations{entries: make(map[string]*reservation)}
}

func (r *reservations) acquire(id string) *reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		e = &reservation{pending: decimal.Zero}
		r.entries[id] = e
	}
	e.refs++
	return e
}

func (r *reservations) drop(id string, e *reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, id)
	}
}

// reserve 在想法锁内执行 check（传入当前在途金额），通过后预留 amount
func (r *reservations) reserve(id string, amount decimal.Decimal, check func(pending decimal.Decimal) error) (func(), error) {
	e := r.acquire(id)

	e.mu.Lock()
	if err := check(e.pending); err != nil {
		e.mu.Unlock()
		r.drop(id, e)
		return nil, err
	}
	e.pending = e.pending.Add(amount)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.pending = e.pending.Sub(amount)
			e.mu.Unlock()
			r.drop(id, e)
		})
	}, nil
}

// pending 当前在途金额
func (r *reservations) pending(id string) decimal.Decimal {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return decimal.Zero
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}
