package risk

import "strings"

// countryCallingCodes are the calling-code prefixes stripped during phone
// normalization. The slice order is the match priority: codes sharing a
// leading digit are listed longest first so "20" (Egypt) cannot shadow
// "212" (Morocco).
var countryCallingCodes = []string{
	"966", // Saudi Arabia
	"971", // UAE
	"965", // Kuwait
	"973", // Bahrain
	"974", // Qatar
	"968", // Oman
	"962", // Jordan
	"961", // Lebanon
	"963", // Syria
	"964", // Iraq
	"967", // Yemen
	"970", // Palestine
	"249", // Sudan
	"212", // Morocco
	"213", // Algeria
	"216", // Tunisia
	"218", // Libya
	"20",  // Egypt
	"90",  // Turkey
}

// minPhoneDigits is the shortest normalized phone considered usable for
// comparison. Shorter results are rejected and the referral is excluded from
// phone-based rules entirely.
const minPhoneDigits = 7

// NormalizePhone canonicalizes a raw phone number to bare national digits.
// The second return value is false when the input does not normalize to a
// comparable number.
func NormalizePhone(raw string) (string, bool) {
	digits := digitsOnly(raw)
	if digits == "" {
		return "", false
	}

	// International dialing prefix
	digits = strings.TrimPrefix(digits, "00")

	// One country calling code, tried in priority order
	for _, code := range countryCallingCodes {
		if strings.HasPrefix(digits, code) {
			digits = digits[len(code):]
			break
		}
	}

	// Residual trunk zeros
	digits = strings.TrimLeft(digits, "0")

	if len(digits) < minPhoneDigits {
		return "", false
	}
	return digits, true
}

// NormalizeEmail lowercases an address and splits it at the last "@".
// The domain is kept verbatim; the local part is returned as-is.
func NormalizeEmail(raw string) (local, domain string) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}

// EmailLocalBase strips digits and separators from a local part, leaving the
// alphabetic base used for similarity comparison: "ahmed.123" -> "ahmed".
func EmailLocalBase(local string) string {
	var b strings.Builder
	for _, r := range local {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-' || r == '+':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
