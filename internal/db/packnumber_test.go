package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestFormatPackNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		accountID int
		sequence  int
		want      string
	}{
		{12345, 1000000, "V12345E1000000"},
		{12345, 42, "V12345E0000042"},
		{7, 1, "V7E0000001"},
		{12345, 99999999, "V12345E99999999"},
	}

	for _, tt := range tests {
		if got := FormatPackNumber(tt.accountID, tt.sequence); got != tt.want {
			t.Errorf("FormatPackNumber(%d, %d) = %q, want %q", tt.accountID, tt.sequence, got, tt.want)
		}
	}
}

func TestPackSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		packNo string
		prefix string
		want   int
		ok     bool
	}{
		{"zero padded", "V12345E1000042", "V12345E", 1000042, true},
		{"beyond seven digits", "V12345E10000000", "V12345E", 10000000, true},
		{"other account", "V99999E1000001", "V12345E", 0, false},
		{"prefix only", "V12345E", "V12345E", 0, false},
		{"garbage suffix", "V12345Eabc", "V12345E", 0, false},
		{"negative suffix", "V12345E-12", "V12345E", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := packSequence(tt.packNo, tt.prefix)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("packSequence(%q, %q) = %d, %v, want %d, %v", tt.packNo, tt.prefix, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPackNumberRoundTrip(t *testing.T) {
	t.Parallel()

	prefix := packNumberPrefix(12345)
	for _, sequence := range []int{1, 1000000, 9999999} {
		packNo := FormatPackNumber(12345, sequence)
		got, ok := packSequence(packNo, prefix)
		if !ok || got != sequence {
			t.Fatalf("round trip of %d via %q gave %d, %v", sequence, packNo, got, ok)
		}
	}
}

func TestIsSerializationFailure(t *testing.T) {
	t.Parallel()

	serialization := &pgconn.PgError{Code: "40001"}
	if !isSerializationFailure(serialization) {
		t.Fatalf("40001 must be retryable")
	}
	if !isSerializationFailure(fmt.Errorf("tx failed: %w", serialization)) {
		t.Fatalf("wrapped 40001 must be retryable")
	}
	if isSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not a serialization failure")
	}
	if isSerializationFailure(errors.New("connection reset")) {
		t.Fatalf("plain errors are not retryable")
	}
}
