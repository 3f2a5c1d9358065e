package cli

import (
	"sort"
	"time"

	"pricewatch/internal/models"
	"pricewatch/internal/money"
	"pricewatch/pkg/utils"
)

// FormatPrice formats an optional price; nil renders as "-".
func FormatPrice(cents *int64) string {
	if cents == nil {
		return "-"
	}
	return money.FormatUSD(*cents)
}

// PercentChange returns the change from prev to cur in percent. A zero
// previous price yields zero.
func PercentChange(prev, cur int64) float64 {
	if prev == 0 {
		return 0
	}
	return money.ToDecimal(cur - prev).
		Div(money.ToDecimal(prev)).
		Shift(2).
		Round(2).
		InexactFloat64()
}

// FormatChange formats a price movement, e.g. "-$5.00 (-10.00%)".
func FormatChange(prev *int64, cur int64) string {
	if prev == nil {
		return "new"
	}
	diff := cur - *prev
	if diff == 0 {
		return "unchanged"
	}
	sign := ""
	if diff > 0 {
		sign = "+"
	}
	return sign + money.FormatUSD(diff) + " (" + utils.FormatPercent(PercentChange(*prev, cur)) + ")"
}

// FormatChecked renders when a listing was last read.
func FormatChecked(t *time.Time, now time.Time) string {
	if t == nil {
		return "not yet checked"
	}
	return utils.FormatAge(*t, now)
}

// SortedByPrice returns the product's retailers cheapest first. Unchecked
// listings go last; equal prices keep their stored order.
func SortedByPrice(p models.Product) []models.RetailerRecord {
	sorted := make([]models.RetailerRecord, len(p.Retailers))
	copy(sorted, p.Retailers)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].CurrentPriceCents, sorted[j].CurrentPriceCents
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	return sorted
}
