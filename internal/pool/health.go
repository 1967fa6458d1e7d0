// health.go - Pool health scoring and risk assessment.
//
// The privacy score is a step function of the unique depositor count, with
// any risk flag forcing CRITICAL. Effective anonymity is the exact
// rational 1/u: the probability an observer assigns to each ring member.

package pool

import (
	"fmt"
	"math/big"
)

// Score is the coarse privacy rating of a pool.
type Score string

// Privacy score levels, best to worst.
const (
	ScoreExcellent Score = "EXCELLENT"
	ScoreGood      Score = "GOOD"
	ScoreFair      Score = "FAIR"
	ScorePoor      Score = "POOR"
	ScoreCritical  Score = "CRITICAL"
)

// Risk flag reasons. Values carry detail after the reason prefix.
const (
	FlagLowRingSize         = "LOW_RING_SIZE"
	FlagDuplicateKeys       = "DUPLICATE_KEYS"
	FlagInflatedRing        = "INFLATED_RING"
	FlagLowLiquidity        = "LOW_LIQUIDITY"
	FlagHighWithdrawalRatio = "HIGH_WITHDRAWAL_RATIO"
)

// minHealthyRing is the ring size below which anonymity is considered weak.
const minHealthyRing = 4

// HealthReport summarizes the privacy posture of one pool snapshot.
type HealthReport struct {
	PoolID             string   `json:"pool_id"`
	RingSize           int      `json:"ring_size"`
	UniqueDepositors   int      `json:"unique_depositors"`
	EffectiveAnonymity *big.Rat `json:"effective_anonymity"` // 1/u, zero when the ring is empty
	NullifierCount     int      `json:"nullifier_count"`     // -1 when only a digest is known
	Withdrawable       int64    `json:"withdrawable"`
	SlotsRemaining     int      `json:"slots_remaining"`
	RiskFlags          []string `json:"risk_flags"`
	PrivacyScore       Score    `json:"privacy_score"`
}

// ScoreSnapshot evaluates a pool snapshot into a health report.
func ScoreSnapshot(s *Snapshot) *HealthReport {
	ringSize := len(s.Ring)
	unique := countUnique(s)
	duplicates := ringSize - unique

	var withdrawable int64
	if s.Denomination > 0 {
		withdrawable = s.TokenBalance / s.Denomination
	}

	nullifiers := s.NullifierCount()

	var flags []string
	if ringSize < minHealthyRing {
		flags = append(flags, fmt.Sprintf("%s: ring %d < %d, weak anonymity", FlagLowRingSize, ringSize, minHealthyRing))
	}
	if duplicates > 0 {
		flags = append(flags, fmt.Sprintf("%s: %d duplicate keys detected, possible ring poisoning", FlagDuplicateKeys, duplicates))
		flags = append(flags, fmt.Sprintf("%s: reported ring %d but unique keys %d", FlagInflatedRing, ringSize, unique))
	}
	if ringSize > 0 && withdrawable < int64(ringSize) {
		flags = append(flags, fmt.Sprintf("%s: only %d withdrawals possible with ring of %d", FlagLowLiquidity, withdrawable, ringSize))
	}
	if nullifiers > 0 && ringSize > 0 && 2*nullifiers > ringSize {
		flags = append(flags, fmt.Sprintf("%s: %d/%d keys already withdrawn", FlagHighWithdrawalRatio, nullifiers, ringSize))
	}

	anonymity := new(big.Rat)
	if unique >= 1 {
		anonymity.SetFrac64(1, int64(unique))
	}

	return &HealthReport{
		PoolID:             s.PoolID,
		RingSize:           ringSize,
		UniqueDepositors:   unique,
		EffectiveAnonymity: anonymity,
		NullifierCount:     nullifiers,
		Withdrawable:       withdrawable,
		SlotsRemaining:     s.SlotsRemaining(),
		RiskFlags:          flags,
		PrivacyScore:       privacyScore(unique, flags),
	}
}

// privacyScore maps unique depositor count and risk flags onto the step
// scale. Any flag, or fewer than two real depositors, is CRITICAL.
func privacyScore(unique int, flags []string) Score {
	if len(flags) > 0 || unique < 2 {
		return ScoreCritical
	}
	switch {
	case unique >= 8:
		return ScoreExcellent
	case unique >= 6:
		return ScoreGood
	case unique >= 4:
		return ScoreFair
	default:
		return ScorePoor
	}
}

func countUnique(s *Snapshot) int {
	seen := make(map[string]struct{}, len(s.Ring))
	for _, p := range s.Ring {
		seen[p.String()] = struct{}{}
	}
	return len(seen)
}
