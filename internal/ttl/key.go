package ttl

import (
	"regexp"
	"strings"
)

// KeyPrefix namespaces deposit-window keys. The Redis keyspace is shared with
// other TTL features such as password-reset tokens.
const KeyPrefix = "booking:"

var bookingNumberPattern = regexp.MustCompile(`^\d{8}-\d{8}$`)

func BookingKey(number string) string {
	return KeyPrefix + number
}

// ParseBookingKey extracts the booking number from a deposit-window key. It
// returns false for keys of other features and for malformed numbers.
func ParseBookingKey(key string) (string, bool) {
	number, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || !bookingNumberPattern.MatchString(number) {
		return "", false
	}
	return number, true
}
