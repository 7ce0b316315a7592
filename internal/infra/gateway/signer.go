package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Sign returns the hex HMAC-SHA256 of the concatenated fields, in order.
func Sign(secret string, fields ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, f := range fields {
		mac.Write([]byte(f))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeMSISDN converts a Kenyan phone number to 2547XXXXXXXX form.
// It returns "" when the input cannot be a mobile number.
func NormalizeMSISDN(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 10 && digits[0] == '0':
		digits = "254" + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		digits = "254" + digits
	}
	if len(digits) != 12 || !strings.HasPrefix(digits, "254") {
		return ""
	}
	return digits
}
