// Package calculator holds the group bookkeeping used by the development
// backend: monthly contribution targets, group funds, loan entitlement,
// withdrawal quorum and loan interest.
package calculator

import "math"

// Contribution status of a member relative to the month's target.
const (
	StatusMet     = "met"
	StatusPending = "pending"
)

// RequiredSoFar is the amount a member should have contributed by the given
// day of the month.
func RequiredSoFar(dailyAmount float64, day int) float64 {
	if dailyAmount <= 0 || day <= 0 {
		return 0
	}
	return dailyAmount * float64(day)
}

// PendingAmount is what is still missing to reach required. Never negative.
func PendingAmount(required, contributed float64) float64 {
	return math.Max(0, required-contributed)
}

// ContributionStatus reports StatusMet once contributed reaches required.
func ContributionStatus(required, contributed float64) string {
	if contributed >= required {
		return StatusMet
	}
	return StatusPending
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
