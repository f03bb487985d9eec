package sales

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// GenerateSaleNumber produces a human-facing, time-ordered sale number with a
// random high-entropy suffix. The sale_number column carries a unique index as
// the final guard.
func GenerateSaleNumber(now time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// math-free fallback keeps numbers unique enough within one process
		suffix = []byte{
			byte(now.UnixNano() >> 24),
			byte(now.UnixNano() >> 16),
			byte(now.UnixNano() >> 8),
			byte(now.UnixNano()),
		}
	}
	return "S-" + now.UTC().Format("20060102-150405") + "-" + strings.ToUpper(hex.EncodeToString(suffix))
}
