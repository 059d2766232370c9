package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-typed config fields (telegram.poll_timeout, storage.busy_timeout,
// digest.window) are stored as Go duration strings so the file stays
// readable ("10s", "24h"). An empty string means "use the component's
// default"; negatives are rejected because no consumer here can make sense
// of a negative timeout or window.

// ParseDurationField parses one such field. path names the field in error
// messages so a rejected hot reload points at the offending line.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
