package quote

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Number prefixes.
const (
	PrefixQuotation = "QT"
	PrefixOrder     = "ORD"
	PrefixPolicy    = "POL"
)

// randomSuffix returns n uppercase hex characters from a random UUID.
func randomSuffix(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(hex) {
		n = len(hex)
	}
	return strings.ToUpper(hex[:n])
}

// formatNumber renders PREFIX-YYYYMMDD-SUFFIX with the date taken in loc.
func formatNumber(prefix string, at time.Time, loc *time.Location, suffix string) string {
	return prefix + "-" + at.In(loc).Format("20060102") + "-" + suffix
}
