package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

// LocalLocker is the in-process LoanLocker used when no Redis is configured.
// It only serializes requests handled by the same process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uuid.UUID]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, loanID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[loanID]; busy {
		return nil, customError.WrapLoanBusy(loanID.String())
	}
	l.held[loanID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, loanID)
			l.mu.Unlock()
		})
	}, nil
}

// NopScheduleCache never stores anything
type NopScheduleCache struct{}

func (NopScheduleCache) Get(context.Context, uuid.UUID, string) (*domain.ScheduleResponse, bool, error) {
	return nil, false, nil
}

func (NopScheduleCache) Set(context.Context, uuid.UUID, string, *domain.ScheduleResponse) error {
	return nil
}

func (NopScheduleCache) Invalidate(context.Context, uuid.UUID) error {
	return nil
}
