package trading

import "math"

// ComputePositionSize returns the share quantity for a new buy.
//
// The dollar budget is the sector's allocation of total portfolio value,
// capped by the per-position limit, then by cash actually available after
// pending settlements. Quantity is the floor of budget over price; a result
// of zero means the buy is skipped entirely, never rounded up.
func ComputePositionSize(totalValue, sectorWeight, maxPositionPercent, availableCash, price float64) int {
	if price <= 0 || totalValue <= 0 || availableCash <= 0 {
		return 0
	}

	budget := totalValue * sectorWeight
	if cap := totalValue * maxPositionPercent; budget > cap {
		budget = cap
	}
	if budget > availableCash {
		budget = availableCash
	}
	if budget <= 0 {
		return 0
	}
	return int(math.Floor(budget / price))
}
