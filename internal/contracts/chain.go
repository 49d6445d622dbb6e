package contracts

import (
	"fmt"
	"time"

	"github.com/kuldar/futures-data/internal/config"
)

// MonthCodes maps calendar months to futures month codes.
// H=Mar, M=Jun, U=Sep, Z=Dec for financials; commodities use all twelve.
var MonthCodes = map[int]string{
	1: "F", 2: "G", 3: "H", 4: "J", 5: "K", 6: "M",
	7: "N", 8: "Q", 9: "U", 10: "V", 11: "X", 12: "Z",
}

// ContractMonth is one specific expiry in a contract chain.
type ContractMonth struct {
	Code  string    // "YYYYMM", e.g. "202503" for the March 2025 contract
	Start time.Time // Estimated date this contract became front month
}

// MonthCode returns the exchange short code for the contract,
// e.g. "202503" → "H5".
func (c ContractMonth) MonthCode() (string, error) {
	if len(c.Code) != 6 {
		return "", fmt.Errorf("bad contract code %q", c.Code)
	}
	var year, month int
	if _, err := fmt.Sscanf(c.Code, "%4d%2d", &year, &month); err != nil {
		return "", fmt.Errorf("bad contract code %q: %w", c.Code, err)
	}
	code, ok := MonthCodes[month]
	if !ok {
		return "", fmt.Errorf("bad contract month %d", month)
	}
	return fmt.Sprintf("%s%d", code, year%10), nil
}

// Chain computes the ordered sequence of contract months needed to cover
// [start, end], walking backward from end. For each date the active
// contract is the nearest valid expiry month strictly after the current
// month (wrapping into the next year), unless the date falls inside a
// valid expiry month before the instrument's early-roll day, in which
// case that month is itself still active. A contract's estimated start
// is the 20th of the previous valid expiry month.
//
// Each step moves current back past a full contract period, so the walk
// terminates for any range.
func Chain(inst config.Instrument, start, end time.Time) []ContractMonth {
	valid := inst.Months
	rollDay := inst.EarlyRollDay
	if rollDay == 0 {
		rollDay = config.DefaultEarlyRollDay
	}

	var chain []ContractMonth
	seen := make(map[string]struct{})

	current := end
	for current.After(start) {
		year, month := current.Year(), int(current.Month())

		expiryYear, expiryMonth := nextValidMonth(valid, year, month)

		// Inside a valid expiry month before the roll day, liquidity has
		// not yet shifted to the next contract.
		if current.Day() < rollDay && containsMonth(valid, month) {
			expiryYear, expiryMonth = year, month
		}

		code := fmt.Sprintf("%d%02d", expiryYear, expiryMonth)

		prevYear, prevMonth := prevValidMonth(valid, expiryYear, expiryMonth)
		contractStart := time.Date(prevYear, time.Month(prevMonth), 20, 0, 0, 0, 0, time.UTC)

		if _, ok := seen[code]; !ok {
			seen[code] = struct{}{}
			chain = append(chain, ContractMonth{Code: code, Start: contractStart})
		}

		// The start estimate (20th) can land after dates between the
		// early-roll day and the 20th; step day by day through that gap
		// so the walk always makes progress.
		next := contractStart.AddDate(0, 0, -1)
		if !next.Before(current) {
			next = current.AddDate(0, 0, -1)
		}
		current = next
	}

	return chain
}

// nextValidMonth finds the nearest valid month strictly after month,
// wrapping into the next year when none remain.
func nextValidMonth(valid []int, year, month int) (int, int) {
	for _, m := range valid {
		if m > month {
			return year, m
		}
	}
	return year + 1, valid[0]
}

// prevValidMonth finds the valid month preceding the given expiry month,
// wrapping into the prior year from the first entry.
func prevValidMonth(valid []int, year, month int) (int, int) {
	for i, m := range valid {
		if m == month {
			if i > 0 {
				return year, valid[i-1]
			}
			return year - 1, valid[len(valid)-1]
		}
	}
	// Month not in the valid list; fall back to the nearest earlier one.
	for i := len(valid) - 1; i >= 0; i-- {
		if valid[i] < month {
			return year, valid[i]
		}
	}
	return year - 1, valid[len(valid)-1]
}

func containsMonth(valid []int, month int) bool {
	for _, m := range valid {
		if m == month {
			return true
		}
	}
	return false
}
