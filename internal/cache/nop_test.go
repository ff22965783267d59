package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lease-billing/internal/domain"
	customError "github.com/segyhp/lease-billing/pkg/errors"
)

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	loanID := uuid.New()

	release, err := locker.Acquire(ctx, loanID)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, loanID)
	assert.ErrorIs(t, err, customError.ErrLoanBusy)

	otherRelease, err := locker.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	otherRelease()

	release()
	release()

	again, err := locker.Acquire(ctx, loanID)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_OneWinnerUnderContention(t *testing.T) {
	locker := NewLocalLocker()
	loanID := uuid.New()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := locker.Acquire(context.Background(), loanID); err == nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestNopScheduleCache(t *testing.T) {
	var c NopScheduleCache
	ctx := context.Background()
	loanID := uuid.New()

	require.NoError(t, c.Set(ctx, loanID, "2024-03-01@1", &domain.ScheduleResponse{LoanID: loanID}))
	got, ok, err := c.Get(ctx, loanID, "2024-03-01@1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Invalidate(ctx, loanID))
}
