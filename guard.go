package graphqa

import (
	"regexp"
	"strings"
)

// piiDetector recognizes one kind of personally identifiable information.
// An optional verify function filters regex matches that fail a checksum or
// range check.
type piiDetector struct {
	name   string
	re     *regexp.Regexp
	verify func(match string) bool
}

// piiDetectors is the fixed allow-list of blocked PII kinds. A hit from any
// of them rejects the request before a single paid call is made.
var piiDetectors = []piiDetector{
	{
		name: "email",
		re:   regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	},
	{
		name:   "phone",
		re:     regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`),
		verify: func(m string) bool { return digitCount(m) >= 9 },
	},
	{
		name:   "payment_card",
		re:     regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`),
		verify: luhnValid,
	},
	{
		name:   "iban",
		re:     regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Za-z0-9]{11,30}\b`),
		verify: ibanValid,
	},
	{
		name:   "national_id",
		re:     regexp.MustCompile(`\b(?:\d{8}|[XYZ]\d{7})[A-Za-z]\b`),
		verify: spanishIDValid,
	},
	{
		name: "person_name",
		re: regexp.MustCompile(`(?:\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+)|` +
			`(?i:\bmy name is\s+\S+)|(?i:\bi am called\s+\S+)`),
	},
	{
		name:   "ip_address",
		re:     regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b|\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`),
		verify: ipValid,
	},
	{
		name: "url",
		re:   regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`),
	},
	{
		name: "crypto_address",
		re: regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b|` +
			`\bbc1[a-z0-9]{20,}\b|\b0x[a-fA-F0-9]{40}\b`),
	},
	{
		name:   "medical_license",
		re:     regexp.MustCompile(`\b[ABFGMPRX][A-Z]\d{7}\b`),
		verify: deaValid,
	},
}

// containsPII reports whether any blocked PII kind appears in the text.
func containsPII(text string) bool {
	for _, d := range piiDetectors {
		for _, match := range d.re.FindAllString(text, -1) {
			if d.verify == nil || d.verify(match) {
				return true
			}
		}
	}
	return false
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// sanitizeInput strips every character outside letters, digits, and
// whitespace, then trims. Idempotent.
func sanitizeInput(text string) string {
	return strings.TrimSpace(nonAlphanumeric.ReplaceAllString(text, ""))
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// luhnValid checks the Luhn checksum over the digits of a card candidate.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ibanValid checks the ISO 7064 mod-97 checksum of an IBAN candidate.
func ibanValid(s string) bool {
	s = strings.ToUpper(s)
	rearranged := s[4:] + s[:4]
	rem := 0
	for _, r := range rearranged {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r >= 'A' && r <= 'Z':
			v = int(r-'A') + 10
		default:
			return false
		}
		if v >= 10 {
			rem = (rem*100 + v) % 97
		} else {
			rem = (rem*10 + v) % 97
		}
	}
	return rem == 1
}

const nifLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

// spanishIDValid checks the control letter of a NIF or NIE candidate.
func spanishIDValid(s string) bool {
	s = strings.ToUpper(s)
	body := s[:len(s)-1]
	letter := s[len(s)-1]

	switch body[0] {
	case 'X':
		body = "0" + body[1:]
	case 'Y':
		body = "1" + body[1:]
	case 'Z':
		body = "2" + body[1:]
	}

	n := 0
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return nifLetters[n%23] == letter
}

// ipValid filters IPv4 candidates with out-of-range octets; IPv6 matches
// pass through.
func ipValid(s string) bool {
	if !strings.Contains(s, ".") {
		return true
	}
	for _, part := range strings.Split(s, ".") {
		n := 0
		for _, r := range part {
			n = n*10 + int(r-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}

// deaValid checks the checksum digit of a DEA registration number.
func deaValid(s string) bool {
	digits := s[2:]
	odd := int(digits[0]-'0') + int(digits[2]-'0') + int(digits[4]-'0')
	even := int(digits[1]-'0') + int(digits[3]-'0') + int(digits[5]-'0')
	check := (odd + 2*even) % 10
	return check == int(digits[6]-'0')
}
