package calculator

import (
	"fmt"
	"math"
)

// Interest methods, see models.LoanMethodFlat and models.LoanMethodReducing.
const (
	MethodFlat     = "flat"
	MethodReducing = "reducing"
)

// AccruedBalance returns what is owed on a loan after the given number of
// whole periods. rate is a percentage per period.
//
// Flat interest is charged on the principal every period. Reducing interest
// compounds on the outstanding balance. Repayments already made are passed
// in repaid and are deducted at the end.
func AccruedBalance(principal, repaid, rate float64, periods int, method string) (float64, error) {
	if principal < 0 || rate < 0 || periods < 0 {
		return 0, fmt.Errorf("negative loan terms")
	}

	r := rate / 100
	var owed float64
	switch method {
	case MethodFlat, "":
		owed = principal * (1 + r*float64(periods))
	case MethodReducing:
		owed = principal * math.Pow(1+r, float64(periods))
	default:
		return 0, fmt.Errorf("unknown interest method %q", method)
	}

	return Round2(math.Max(0, owed-repaid)), nil
}
