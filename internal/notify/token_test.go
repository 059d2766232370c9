package notify

import (
	"errors"
	"testing"
)

func TestAckTokenRoundTrip(t *testing.T) {
	t.Parallel()
	for _, mid := range []int64{1, 42, 1 << 40} {
		got, err := ParseAckToken(AckToken(mid))
		if err != nil {
			t.Fatalf("ParseAckToken(AckToken(%d)): %v", mid, err)
		}
		if got != mid {
			t.Fatalf("round trip: got %d, want %d", got, mid)
		}
	}
}

func TestParseAckTokenRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no prefix", token: "42"},
		{name: "wrong prefix", token: "read:42"},
		{name: "not a number", token: "ack:abc"},
		{name: "trailing junk", token: "ack:42x"},
		{name: "zero", token: "ack:0"},
		{name: "negative", token: "ack:-5"},
		{name: "prefix only", token: "ack:"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseAckToken(tt.token)
			if !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("ParseAckToken(%q) = %v, want ErrMalformedToken", tt.token, err)
			}
		})
	}
}
