package reference

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const prefix = "TX-"

var ErrMalformedReference = errors.New("malformed payment reference")

// New builds the local reference TX-{orderID}-{unix millis}.
func New(orderID string, now time.Time) string {
	return prefix + orderID + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ParseOrderID recovers the order id from a reference produced by New. Only the
// trailing all-digit segment is treated as the timestamp, so order ids that
// contain dashes survive the round trip.
func ParseOrderID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, prefix) {
		return "", ErrMalformedReference
	}

	body := strings.TrimPrefix(ref, prefix)
	idx := strings.LastIndex(body, "-")
	if idx <= 0 || idx == len(body)-1 {
		return "", ErrMalformedReference
	}

	stamp := body[idx+1:]
	for _, r := range stamp {
		if r < '0' || r > '9' {
			return "", ErrMalformedReference
		}
	}

	return body[:idx], nil
}
