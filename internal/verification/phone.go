package verification

import "strings"

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneVariants lists the spellings a stored phone number may use for raw:
// raw itself, raw without "+", "+91" prefixed forms for 10 digit and
// zero-prefixed numbers, and the bare digits. Order is kept, duplicates and
// empty strings are dropped.
func PhoneVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	digits := digitsOnly(raw)
	cands := []string{raw}
	if strings.HasPrefix(raw, "+") {
		cands = append(cands, raw[1:])
	}
	if len(digits) == 10 {
		cands = append(cands, "+91"+digits)
	}
	if strings.HasPrefix(raw, "0") && len(digits) >= 10 {
		cands = append(cands, "+91"+strings.TrimLeft(digits, "0"))
	}
	cands = append(cands, digits)

	seen := make(map[string]bool, len(cands))
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// phoneSuffixes returns the last 10 and last 7 digits of raw.
func phoneSuffixes(raw string) (last10, last7 string) {
	d := digitsOnly(raw)
	last10, last7 = d, d
	if len(d) > 10 {
		last10 = d[len(d)-10:]
	}
	if len(d) > 7 {
		last7 = d[len(d)-7:]
	}
	return last10, last7
}
