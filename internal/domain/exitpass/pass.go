// Package exitpass issues and verifies the exit passes shown at the door
// after checkout.
package exitpass

import (
	"fmt"
	"strings"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

// Payload field prefixes inside a scanned pass.
const (
	payloadPrefix = "EXIT:"
	fieldSep      = "|"
	codePrefix    = "EXIT-"
)

// BuildPayload renders the QR payload for a transaction's exit pass:
//
//	EXIT:<exit_code>|TOTAL:<total>|TXN:<transaction_id>
//
// The total rides along so door staff see the amount even when offline.
func BuildPayload(t *checkout.Transaction) string {
	return fmt.Sprintf("EXIT:%s|TOTAL:%s|TXN:%s", t.ExitCode, t.Total.StringFixed(2), t.ID)
}

// ParsePass extracts the exit code from a scanned pass. It accepts either a
// full QR payload or a bare exit code typed in by staff. Anything else is
// rejected; verification treats rejects as not found without touching state.
func ParsePass(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, payloadPrefix) {
		code, _, _ := strings.Cut(strings.TrimPrefix(raw, payloadPrefix), fieldSep)
		code = strings.TrimSpace(code)
		if !strings.HasPrefix(code, codePrefix) {
			return "", false
		}
		return code, true
	}

	if strings.HasPrefix(raw, codePrefix) && !strings.Contains(raw, fieldSep) {
		return raw, true
	}

	return "", false
}
