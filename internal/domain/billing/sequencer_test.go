package billing

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceNumberPrefix(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-2026-", InvoiceNumberPrefix(now))
}

func TestNextInSequence(t *testing.T) {
	prefix := "INV-2026-"

	t.Run("starts at 1 when no numbers exist", func(t *testing.T) {
		assert.Equal(t, "INV-2026-00001", NextInSequence(prefix, ""))
	})

	t.Run("increments the highest issued number", func(t *testing.T) {
		assert.Equal(t, "INV-2026-00042", NextInSequence(prefix, "INV-2026-00041"))
	})

	t.Run("grows past the padded width", func(t *testing.T) {
		assert.Equal(t, "INV-2026-100000", NextInSequence(prefix, "INV-2026-99999"))
	})

	t.Run("restarts when the highest has a foreign prefix", func(t *testing.T) {
		assert.Equal(t, "INV-2026-00001", NextInSequence(prefix, "INV-2025-00099"))
	})

	t.Run("restarts on an unparseable suffix", func(t *testing.T) {
		assert.Equal(t, "INV-2026-00001", NextInSequence(prefix, "INV-2026-garbage"))
	})

	t.Run("continues after a timestamp fallback number", func(t *testing.T) {
		// A fallback suffix parses as a huge integer; the next sequential
		// number follows it rather than colliding with old numbers.
		fallback := FallbackNumber(prefix, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
		next := NextInSequence(prefix, fallback)
		assert.True(t, strings.HasPrefix(next, prefix))
		assert.NotEqual(t, fallback, next)
	})
}

func TestFallbackNumber(t *testing.T) {
	prefix := "INV-2026-"
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	fallback := FallbackNumber(prefix, now)
	assert.Equal(t, fmt.Sprintf("INV-2026-%d", now.UnixMilli()), fallback)

	// Millisecond timestamps sit far outside the zero-padded counter space
	assert.Greater(t, len(fallback), len(NextInSequence(prefix, "")))
}
