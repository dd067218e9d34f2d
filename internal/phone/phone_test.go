package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ten digits gets US prefix", "4155552671", "+14155552671"},
		{"ten digits with punctuation", "(415) 555-2671", "+14155552671"},
		{"eleven digits leading one", "14155552671", "+14155552671"},
		{"plus with ten digits", "+4155552671", "+14155552671"},
		{"already valid E164", "+14155552671", "+14155552671"},
		{"garbage passes through", "12345", "12345"},
		{"international passes through", "+442071838750", "+442071838750"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, n := range []string{"+14155552671", "+15719329354"} {
		once := Normalize(n)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("normalization not idempotent: %q -> %q -> %q", n, once, twice)
		}
	}
}

func TestIsValidE164(t *testing.T) {
	valid := []string{"+14155552671", "+442071838750", "+91"}
	for _, n := range valid {
		if !IsValidE164(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}

	invalid := []string{"", "4155552671", "+0415555267", "+1", "+1234567890123456", "+1415555267a"}
	for _, n := range invalid {
		if IsValidE164(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}
