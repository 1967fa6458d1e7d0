package safety

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	t := start
	return &t, func() time.Time { return t }
}

func testGuard(policy Policy) (*Guard, *time.Time) {
	now, clock := fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewGuardWithClock(policy, clock), now
}

func TestValidateSendPerTxCap(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxValuePerTx = 5
	g, _ := testGuard(policy)

	if err := g.ValidateSend(6, "pool"); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("amount above cap: got %v, want safety violation", err)
	}
	if err := g.ValidateSend(4, "pool"); err != nil {
		t.Errorf("amount under cap rejected: %v", err)
	}
	if err := g.ValidateSend(5, "pool"); err != nil {
		t.Errorf("amount at cap rejected: %v", err)
	}
}

func TestValidateSendDailyWindow(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxValuePerTx = 40
	policy.MaxValuePerDay = 50
	g, now := testGuard(policy)

	if err := g.ValidateSend(40, "pool"); err != nil {
		t.Fatalf("first send rejected: %v", err)
	}
	g.RecordAction(40, *now)

	if err := g.ValidateSend(20, "pool"); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("over-budget send: got %v, want safety violation", err)
	}
	if err := g.ValidateSend(10, "pool"); err != nil {
		t.Errorf("remaining budget rejected: %v", err)
	}

	status := g.Status()
	if status.DailySpent != 40 || status.DailyRemaining != 10 {
		t.Errorf("status wrong: %+v", status)
	}

	// The window rolls: 25 hours later the budget is whole again.
	*now = now.Add(25 * time.Hour)
	if err := g.ValidateSend(40, "pool"); err != nil {
		t.Errorf("send after window rolled rejected: %v", err)
	}
	if got := g.Status().DailySpent; got != 0 {
		t.Errorf("daily spend after roll: got %d, want 0", got)
	}
}

func TestValidateSendRateLimit(t *testing.T) {
	policy := DefaultPolicy()
	policy.RateLimitPerHour = 2
	policy.MaxValuePerTx = 10
	policy.MaxValuePerDay = 1000
	g, now := testGuard(policy)

	g.RecordAction(1, *now)
	g.RecordAction(1, *now)
	if err := g.ValidateSend(1, "pool"); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("rate-limited send: got %v, want safety violation", err)
	}

	*now = now.Add(61 * time.Minute)
	if err := g.ValidateSend(1, "pool"); err != nil {
		t.Errorf("send after hour rolled rejected: %v", err)
	}
}

func TestValidateSendAllowList(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowedContracts = []string{"privacy_pool"}
	g, _ := testGuard(policy)

	if err := g.ValidateSend(1, "somewhere_else"); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("unlisted contract: got %v, want safety violation", err)
	}
	if err := g.ValidateSend(1, "privacy_pool"); err != nil {
		t.Errorf("listed contract rejected: %v", err)
	}

	// Empty allow-list means allow all.
	policy.AllowedContracts = nil
	g, _ = testGuard(policy)
	if err := g.ValidateSend(1, "anything"); err != nil {
		t.Errorf("empty allow-list rejected contract: %v", err)
	}
}

func TestValidateWithdrawalTiming(t *testing.T) {
	policy := DefaultPolicy()
	policy.MinWithdrawalDelayBlocks = 100
	policy.MinPoolRingSize = 4
	g, _ := testGuard(policy)

	if err := g.ValidateWithdrawalTiming(1000, 1050, 8); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("50-block delay: got %v, want safety violation", err)
	}
	// Boundary inclusive: exactly the minimum delay passes.
	if err := g.ValidateWithdrawalTiming(1000, 1100, 8); err != nil {
		t.Errorf("exact minimum delay rejected: %v", err)
	}
	if err := g.ValidateWithdrawalTiming(1000, 1200, 3); !errors.Is(err, ErrSafetyViolation) {
		t.Errorf("ring below floor: got %v, want safety violation", err)
	}
}

func TestRecordActionNotSpeculative(t *testing.T) {
	g, now := testGuard(DefaultPolicy())
	if err := g.ValidateSend(5, "pool"); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	// Validation alone must not consume budget.
	if got := g.Status().DailySpent; got != 0 {
		t.Errorf("validation consumed budget: %d", got)
	}
	g.RecordAction(5, *now)
	if got := g.Status().DailySpent; got != 5 {
		t.Errorf("recorded spend: got %d, want 5", got)
	}
	if got := g.Status().ActionsLastHour; got != 1 {
		t.Errorf("recorded actions: got %d, want 1", got)
	}
}
