// safety.go - Safety policy gate for state-changing pool actions.
//
// Guards against runaway callers and misconfigured automation: hard per-tx
// caps, a rolling 24h spend window, an hourly action rate window, a
// contract allow-list, and privacy-timing floors for withdrawals. Every
// state-changing payload must pass validation here before assembly.
//
// The guard is the only mutable shared state in the core. It serializes
// itself with a mutex; use one Guard per policy instance.

package safety

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSafetyViolation is the base error for every policy rejection. Fatal
// to the call: violations are never downgraded or bypassed.
var ErrSafetyViolation = errors.New("safety violation")

// Policy configures spending limits and operational boundaries.
type Policy struct {
	MaxValuePerTx  int64 `json:"max_value_per_tx"`
	MaxValuePerDay int64 `json:"max_value_per_day"`
	// RateLimitPerHour caps state-changing actions per rolling hour.
	RateLimitPerHour int `json:"rate_limit_per_hour"`
	// AllowedContracts whitelists interaction targets; empty = allow all.
	AllowedContracts []string `json:"allowed_contracts"`
	// DryRun builds payloads but never records them as executed.
	DryRun bool `json:"dry_run"`
	// MinWithdrawalDelayBlocks is the minimum deposit-to-withdrawal gap;
	// withdrawing sooner creates a timing correlation.
	MinWithdrawalDelayBlocks int64 `json:"min_withdrawal_delay_blocks"`
	// MinPoolRingSize is the anonymity floor for withdrawals.
	MinPoolRingSize int `json:"min_pool_ring_size"`
}

// DefaultPolicy returns conservative limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxValuePerTx:            10,
		MaxValuePerDay:           50,
		RateLimitPerHour:         20,
		MinWithdrawalDelayBlocks: 100,
		MinPoolRingSize:          4,
	}
}

// Status reports the guard's remaining budgets.
type Status struct {
	DailySpent      int64 `json:"daily_spent"`
	DailyRemaining  int64 `json:"daily_remaining"`
	ActionsLastHour int   `json:"actions_last_hour"`
	ActionsLeft     int   `json:"actions_remaining_this_hour"`
	DryRun          bool  `json:"dry_run"`
}

type spendEntry struct {
	at     time.Time
	amount int64
}

// Guard tracks rolling windows over a Policy.
type Guard struct {
	mu      sync.Mutex
	policy  Policy
	actions []time.Time
	spends  []spendEntry
	now     func() time.Time
}

// NewGuard creates a guard over the given policy.
func NewGuard(policy Policy) *Guard {
	return &Guard{policy: policy, now: time.Now}
}

// NewGuardWithClock creates a guard with an injected clock, for tests.
func NewGuardWithClock(policy Policy, now func() time.Time) *Guard {
	return &Guard{policy: policy, now: now}
}

// Policy returns a copy of the guard's policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// ValidateSend checks a value-moving action against the per-tx cap, the
// rolling daily cap, the contract allow-list, and the hourly rate window.
func (g *Guard) ValidateSend(amount int64, contractID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("%w: amount %d is not positive", ErrSafetyViolation, amount)
	}
	if amount > g.policy.MaxValuePerTx {
		return fmt.Errorf("%w: amount %d exceeds per-tx limit %d", ErrSafetyViolation, amount, g.policy.MaxValuePerTx)
	}
	daily := g.dailyTotalLocked()
	if daily+amount > g.policy.MaxValuePerDay {
		return fmt.Errorf("%w: daily total %d + %d exceeds limit %d", ErrSafetyViolation, daily, amount, g.policy.MaxValuePerDay)
	}
	if len(g.policy.AllowedContracts) > 0 && !g.contractAllowed(contractID) {
		return fmt.Errorf("%w: contract %q is not in the allow-list", ErrSafetyViolation, contractID)
	}
	if g.hourlyCountLocked() >= g.policy.RateLimitPerHour {
		return fmt.Errorf("%w: rate limit of %d actions/hour reached", ErrSafetyViolation, g.policy.RateLimitPerHour)
	}
	return nil
}

// ValidateWithdrawalTiming enforces the deposit-to-withdrawal delay and
// the anonymity floor. The delay check is boundary-inclusive.
func (g *Guard) ValidateWithdrawalTiming(depositHeight, currentHeight int64, poolRingSize int) error {
	elapsed := currentHeight - depositHeight
	if elapsed < g.policy.MinWithdrawalDelayBlocks {
		return fmt.Errorf("%w: only %d blocks since deposit, minimum %d (timing correlation risk)",
			ErrSafetyViolation, elapsed, g.policy.MinWithdrawalDelayBlocks)
	}
	if poolRingSize < g.policy.MinPoolRingSize {
		return fmt.Errorf("%w: pool ring size %d below minimum %d", ErrSafetyViolation, poolRingSize, g.policy.MinPoolRingSize)
	}
	return nil
}

// RecordAction appends a completed action to the rolling windows. Call it
// atomically with the guarded action, never speculatively: a rejected or
// dry-run assembly must not consume budget.
func (g *Guard) RecordAction(amount int64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions = append(g.actions, at)
	if amount > 0 {
		g.spends = append(g.spends, spendEntry{at: at, amount: amount})
	}
}

// DryRun reports whether the guard short-circuits execution recording.
func (g *Guard) DryRun() bool {
	return g.policy.DryRun
}

// Status returns the current remaining budgets.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	daily := g.dailyTotalLocked()
	hourly := g.hourlyCountLocked()
	remaining := g.policy.MaxValuePerDay - daily
	if remaining < 0 {
		remaining = 0
	}
	left := g.policy.RateLimitPerHour - hourly
	if left < 0 {
		left = 0
	}
	return Status{
		DailySpent:      daily,
		DailyRemaining:  remaining,
		ActionsLastHour: hourly,
		ActionsLeft:     left,
		DryRun:          g.policy.DryRun,
	}
}

func (g *Guard) contractAllowed(contractID string) bool {
	for _, allowed := range g.policy.AllowedContracts {
		if allowed == contractID {
			return true
		}
	}
	return false
}

// dailyTotalLocked sums spends in the last 24h, pruning older entries.
func (g *Guard) dailyTotalLocked() int64 {
	cutoff := g.now().Add(-24 * time.Hour)
	kept := g.spends[:0]
	var total int64
	for _, e := range g.spends {
		if e.at.After(cutoff) {
			kept = append(kept, e)
			total += e.amount
		}
	}
	g.spends = kept
	return total
}

// hourlyCountLocked counts actions in the last hour, pruning older entries.
func (g *Guard) hourlyCountLocked() int {
	cutoff := g.now().Add(-time.Hour)
	kept := g.actions[:0]
	for _, at := range g.actions {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	g.actions = kept
	return len(g.actions)
}
