package negotiation

import (
	"testing"
	"time"
)

func TestExtractConfirmationCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "labeled confirmation code",
			text: "Alright, your confirmation code is RF8842XQ, anything else?",
			want: "RF8842XQ",
			ok:   true,
		},
		{
			name: "reference number with colon",
			text: "Your reference number: CX-99812",
			want: "CX-99812",
			ok:   true,
		},
		{
			name: "cancellation code hash",
			text: "noted, cancellation code #AB12CD34",
			want: "AB12CD34",
			ok:   true,
		},
		{
			name: "bare ticket shaped token",
			text: "we filed ticket REF-20449 for you",
			want: "REF-20449",
			ok:   true,
		},
		{
			name: "nothing usable",
			text: "thank you for calling, have a great day",
			ok:   false,
		},
		{
			name: "lowercase chatter does not match",
			text: "the code is hard to say over the phone",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractConfirmationCode(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("extractConfirmationCode(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractRefundAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{name: "plain refund", text: "we will refund $45.50 to your card", want: 45.50, ok: true},
		{name: "prorated credit", text: "a prorated amount of $12 will be returned", want: 12, ok: true},
		{name: "amount far from refund word", text: "refund policy applies; unrelated: the total you originally paid including shipping and handling was $99.99", ok: false},
		{name: "no amount", text: "your refund has been approved", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractRefundAmount(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("extractRefundAmount(%q) = %v, %v; want %v, %v", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSynthesizeCode(t *testing.T) {
	now := time.UnixMilli(1710001234567)
	got := synthesizeCode(now)
	if got != "CSR-234567" {
		t.Fatalf("synthesizeCode = %q, want CSR-234567", got)
	}
	if synthesizeCode(now) != got {
		t.Fatal("synthesizeCode not deterministic for a fixed time")
	}
}

func TestSummarizeOutcome(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"your request has been Approved", "Request approved and processed"},
		{"we processed the cancellation", "Request approved and processed"},
		{"it is pending with the billing team", "Request under review"},
		{"unfortunately the claim was denied", "Request denied"},
		{"goodbye", "Resolution pending"},
	}
	for _, tt := range tests {
		if got := summarizeOutcome(tt.text); got != tt.want {
			t.Fatalf("summarizeOutcome(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
