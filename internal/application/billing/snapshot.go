package billing

import (
	"encoding/json"

	"github.com/finbooks/backend/internal/domain/billing"
)

// invoiceSnapshot captures the audit-relevant state of an invoice as JSON
func invoiceSnapshot(inv *billing.Invoice) string {
	b, _ := json.Marshal(map[string]any{
		"status":      inv.Status,
		"total":       inv.Total,
		"amount_paid": inv.AmountPaid,
		"balance":     inv.Balance,
		"version":     inv.Version,
	})
	return string(b)
}

// paymentSnapshot captures the audit-relevant state of a payment as JSON
func paymentSnapshot(p *billing.Payment) string {
	b, _ := json.Marshal(map[string]any{
		"status":          p.Status,
		"amount":          p.Amount,
		"refunded_amount": p.RefundedAmount,
		"version":         p.Version,
	})
	return string(b)
}
