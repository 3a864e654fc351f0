package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNumberAttempts bounds the sequential-allocation retry loop. After the
// sequential attempts are spent, a timestamp-derived fallback number keeps
// invoice creation live at the cost of a gap in the sequence.
const MaxNumberAttempts = 5

// NumberWidth is the zero-padded counter width (INV-2026-00042)
const NumberWidth = 5

// SequenceSource reads previously issued document numbers for a tenant.
// Implementations order by creation time, not by the number column, so a
// lexicographic anomaly in stored numbers cannot corrupt the sequence.
type SequenceSource interface {
	HighestNumber(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error)
}

// InvoiceNumberPrefix returns the per-year prefix for invoice numbers
// (e.g. "INV-2026-")
func InvoiceNumberPrefix(now time.Time) string {
	return fmt.Sprintf("INV-%d-", now.Year())
}

// NextInSequence parses the numeric suffix of the highest issued number and
// formats the next candidate. An empty or unparseable highest number starts
// the sequence at 1.
func NextInSequence(prefix, highest string) string {
	next := int64(1)
	if highest != "" && strings.HasPrefix(highest, prefix) {
		if n, err := strconv.ParseInt(strings.TrimPrefix(highest, prefix), 10, 64); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, NumberWidth, next)
}

// FallbackNumber returns a timestamp-derived number. Millisecond precision
// puts it far outside the zero-padded counter space, so it cannot collide
// with sequential numbers; it trades strict sequentiality for liveness.
func FallbackNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d", prefix, now.UnixMilli())
}
