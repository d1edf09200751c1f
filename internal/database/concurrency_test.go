package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batard/internal/booking"
)

// Two simultaneous creates, each asking for 5 against a cap of 8 on the same
// date. Exactly one must commit; the loser must see the winner's committed
// quantity inside its own transaction and fail with a capacity error. This
// pins the immediate-write-lock transaction mode: with deferred transactions
// both reads could happen before either insert.
func TestConcurrentCreatesSerializeOnCapacity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cat, bounded, _ := seedCatalog(t, db)

	start := make(chan struct{})
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := testBooking(fmt.Sprintf("B-20250110-C%03d", i), cat, bounded, 5, "2025-01-10")
			<-start
			results[i] = db.CreateBooking(ctx, b)
		}(i)
	}
	close(start)
	wg.Wait()

	var successes, rejections int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var capErr *booking.CapacityError
			require.ErrorAs(t, err, &capErr)
			require.Len(t, capErr.Shortfalls, 1)
			assert.EqualValues(t, 5, capErr.Shortfalls[0].Requested)
			assert.EqualValues(t, 3, capErr.Shortfalls[0].Remaining)
			rejections++
		}
	}
	assert.Equal(t, 1, successes, "exactly one create must commit")
	assert.Equal(t, 1, rejections, "the other must be rejected for capacity")

	booked, err := db.BookedQuantities(ctx, "2025-01-10")
	require.NoError(t, err)
	assert.EqualValues(t, 5, booked[bounded.ID], "only the winner's quantity is committed")
}

// Unbounded products must not reject under the same contention.
func TestConcurrentCreatesUnbounded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cat, _, unbounded := seedCatalog(t, db)

	start := make(chan struct{})
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := testBooking(fmt.Sprintf("B-20250110-U%03d", i), cat, unbounded, 100, "2025-01-10")
			<-start
			errs[i] = db.CreateBooking(ctx, b)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "create %d", i)
	}

	booked, err := db.BookedQuantities(ctx, "2025-01-10")
	require.NoError(t, err)
	assert.EqualValues(t, 400, booked[unbounded.ID])
}

func TestConcurrentErrorIsCapacityNotBusy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cat, bounded, _ := seedCatalog(t, db)

	require.NoError(t, db.CreateBooking(ctx, testBooking("B-20250110-0001", cat, bounded, 8, "2025-01-10")))

	err := db.CreateBooking(ctx, testBooking("B-20250110-0002", cat, bounded, 1, "2025-01-10"))
	var capErr *booking.CapacityError
	assert.True(t, errors.As(err, &capErr), "full-capacity rejection must be typed, got %v", err)
}
