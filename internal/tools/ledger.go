package tools

import (
	"context"
	"sync"
)

// Ledger records the recipe ids surfaced by findRecipes within one
// conversation. Tool calls of one round may run concurrently.
type Ledger struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewLedger returns a ledger seeded with ids.
func NewLedger(ids ...int64) *Ledger {
	l := &Ledger{ids: make(map[int64]struct{}, len(ids))}
	l.Record(ids...)
	return l
}

// Record marks ids as surfaced.
func (l *Ledger) Record(ids ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
}

// Seen reports whether id was surfaced earlier.
func (l *Ledger) Seen(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Len returns the number of recorded ids.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

type ledgerKey struct{}

// WithLedger attaches a conversation ledger to ctx.
func WithLedger(ctx context.Context, l *Ledger) context.Context {
	return context.WithValue(ctx, ledgerKey{}, l)
}

// LedgerFrom returns the ledger attached to ctx, if any.
func LedgerFrom(ctx context.Context) (*Ledger, bool) {
	l, ok := ctx.Value(ledgerKey{}).(*Ledger)
	return l, ok && l != nil
}
