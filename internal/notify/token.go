package notify

import (
	"fmt"
	"strconv"
	"strings"
)

const tokenPrefix = "ack:"

// AckToken derives the acknowledgment token for a message id. The token is
// the only thing that comes back with a read signal, possibly days later and
// across process restarts, so it must be decodable with no server-side state:
// it is simply the prefixed decimal id.
func AckToken(mid int64) string {
	return tokenPrefix + strconv.FormatInt(mid, 10)
}

// ParseAckToken is the inverse of AckToken.
func ParseAckToken(token string) (int64, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	mid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || mid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	return mid, nil
}
