package offer

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

var errBadDate = errors.New("must be an RFC 3339 timestamp, a YYYY-MM-DD date or epoch milliseconds")

// Date decodes RFC 3339 timestamps, YYYY-MM-DD dates (midnight UTC) and
// epoch milliseconds, given as a number or a string of digits.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return errBadDate
		}
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		d.Time = t
		return nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	return errBadDate
}
