package inventory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Sequence prefixes for the three human-facing document numbers (§4.6,
// §5, §6.1). All three reset every calendar year and are generated by
// reading the current max for the year and incrementing — see
// internal/db for the locking query that makes this collision-safe.
const (
	DispatchPrefix = "DISP"
	ReturnPrefix   = "RET"
	ScrapPrefix    = "SCR"
)

// NextDispatchNumber formats the next DISP-YYYY-NNNN given the highest
// existing number for the year (or "" if none).
func NextDispatchNumber(year int, lastNumber string) string {
	return nextNumbered(DispatchPrefix, year, lastNumber, 4)
}

// NextReturnNumber formats the next RET-YYYY-NNN given the highest
// existing number for the year (or "" if none).
func NextReturnNumber(year int, lastNumber string) string {
	return nextNumbered(ReturnPrefix, year, lastNumber, 3)
}

// NextScrapNumber formats the next SCR-YYYY-NNN given the highest
// existing number for the year (or "" if none).
func NextScrapNumber(year int, lastNumber string) string {
	return nextNumbered(ScrapPrefix, year, lastNumber, 3)
}

func nextNumbered(prefix string, year int, lastNumber string, width int) string {
	next := 1
	if lastNumber != "" {
		parts := strings.Split(lastNumber, "-")
		if n := len(parts); n > 1 && parts[n-2] == strconv.Itoa(year) {
			if v, err := strconv.Atoi(parts[n-1]); err == nil {
				next = v + 1
			}
		}
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, width, next)
}

// BatchCode formats the auto-generated batch code of §4.2:
// {PRODUCT_TYPE}-{PARAM_KV_SORTED}-{BRAND}-{YEAR}-{ZERO_PADDED_BATCH_NO}.
func BatchCode(productType, brand string, params map[string]string, year, batchNo int) string {
	normalized := NormalizeParameters(params)
	keys := make([]string, 0, len(normalized))
	for k := range normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvParts := make([]string, 0, len(keys))
	for _, k := range keys {
		kvParts = append(kvParts, fmt.Sprintf("%s=%s", k, normalized[k]))
	}

	return fmt.Sprintf("%s-%s-%s-%d-%04d",
		slug(productType), strings.Join(kvParts, ","), slug(brand), year, batchNo)
}

func slug(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// ReturnBatchCode formats the independent-audit-trail batch code a Return
// mints for a brand-new variant combination (§4.7 step 3): {return_number}-{NN}.
func ReturnBatchCode(returnNumber string, itemIndex int) string {
	return fmt.Sprintf("%s-%02d", returnNumber, itemIndex)
}

// CurrentYear is the single seam through which operations read "now" for
// year-scoped sequence generation, so tests can pin it.
var CurrentYear = func() int { return time.Now().Year() }
