// Property-based tests for keyed lock serialization.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent read-modify-write
// updates under the same key behave like sequential execution.
// **Validates: per-account serialization**
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		accountID := rapid.Int64Range(1, 1000000).Draw(t, "accountID")
		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(accountID)
				defer ul.Unlock(accountID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
		if ul.Len() != 0 {
			t.Fatalf("expected no live entries, got %d", ul.Len())
		}
	})
}

// TestLockAllNoDeadlockProperty transfers between random pairs of accounts in
// both directions at once. Ordered acquisition must never deadlock and must
// conserve the total.
// **Validates: multi-account settlement locking**
func TestLockAllNoDeadlockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAccounts := rapid.IntRange(2, 6).Draw(t, "numAccounts")
		numOps := rapid.IntRange(5, 40).Draw(t, "numOps")

		balances := make([]int64, numAccounts)
		for i := range balances {
			balances[i] = 1000
		}

		type op struct{ from, to int }
		ops := make([]op, numOps)
		for i := range ops {
			from := rapid.IntRange(0, numAccounts-1).Draw(t, "from")
			to := rapid.IntRange(0, numAccounts-1).Draw(t, "to")
			ops[i] = op{from, to}
		}

		ul := NewUserLock()
		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, o := range ops {
			go func(o op) {
				defer wg.Done()
				unlock := ul.LockAll(int64(o.to), int64(o.from))
				defer unlock()
				balances[o.from] -= 7
				balances[o.to] += 7
			}(o)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("LockAll deadlocked")
		}

		var total int64
		for _, b := range balances {
			total += b
		}
		if total != int64(numAccounts)*1000 {
			t.Fatalf("total not conserved: %d", total)
		}
	})
}

// TestLockExcludesHolderProperty checks that a bounded lock attempt never
// succeeds while another goroutine holds the key.
// **Validates: per-session serialization**
func TestLockExcludesHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sessionID := fmt.Sprintf("s-%d", rapid.IntRange(1, 1000).Draw(t, "session"))
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		sl := NewSessionLock()
		sl.Lock(sessionID)

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				if sl.LockWithTimeout(context.Background(), sessionID, time.Millisecond) == nil {
					successCount.Add(1)
					sl.Unlock(sessionID)
				}
			}()
		}
		wg.Wait()
		sl.Unlock(sessionID)

		if successCount.Load() != 0 {
			t.Fatalf("lock acquired %d times while the key was held", successCount.Load())
		}
		if err := sl.LockWithTimeout(context.Background(), sessionID, time.Second); err != nil {
			t.Fatalf("lock should be available after release: %v", err)
		}
		sl.Unlock(sessionID)
	})
}

// TestLockUnlockSymmetryProperty tests that every Lock has a corresponding Unlock.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		accountID := rapid.Int64Range(1, 1000000).Draw(t, "accountID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		ul := NewUserLock()
		for i := 0; i < numCycles; i++ {
			ul.Lock(accountID)
			ul.Unlock(accountID)
		}

		if ul.Len() != 0 {
			t.Fatal("lock should be released after symmetric lock/unlock cycles")
		}
	})
}

func TestLockWithTimeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock(1)

	err := ul.LockWithTimeout(context.Background(), 1, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	ul.Unlock(1)
	require.Eventually(t, func() bool { return ul.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ul.LockWithTimeout(context.Background(), 1, 20*time.Millisecond))
	ul.Unlock(1)
}

func TestLockContextCancelled(t *testing.T) {
	sl := NewSessionLock()
	sl.Lock("abc")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sl.LockWithTimeout(ctx, "abc", time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	sl.Unlock("abc")
	require.Eventually(t, func() bool { return sl.Len() == 0 }, time.Second, 5*time.Millisecond)
}
