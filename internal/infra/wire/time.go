package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Time decodes the timestamp encodings the marketplace backends emit:
// RFC3339 strings (with or without sub-second precision) and numeric
// epoch values in seconds or milliseconds.
type Time struct {
	time.Time
}

// UnmarshalJSON accepts a JSON string or number and normalizes it to UTC.
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		raw := string(data[1 : len(data)-1])
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			parsed, err := time.Parse(layout, raw)
			if err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		return fmt.Errorf("wire: unrecognized timestamp %q", raw)
	}
	epoch, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("wire: unrecognized timestamp %s", data)
	}
	// Millisecond epochs are 13 digits until the year 33658.
	if epoch > 1e12 {
		t.Time = time.UnixMilli(epoch).UTC()
		return nil
	}
	t.Time = time.Unix(epoch, 0).UTC()
	return nil
}

// MarshalJSON emits RFC3339 UTC, the format the relay expects back.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}
