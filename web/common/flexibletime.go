package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"autolog.dev/autolog/utils"
)

// FlexibleTime accepts an ISO-8601 string, epoch milliseconds, or an extended
// JSON `{"$date": ...}` wrapper. null and "" leave it zero.
type FlexibleTime struct {
	time.Time
}

func (f *FlexibleTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.Time = time.Time{}
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			f.Time = time.Time{}
			return nil
		}
		t, err := utils.ParseISOTime(s)
		if err != nil {
			return fmt.Errorf("invalid date format: %v", err)
		}
		f.Time = t.UTC()
		return nil

	case '{':
		var wrapper struct {
			Date json.RawMessage `json:"$date"`
		}
		if err := json.Unmarshal(b, &wrapper); err != nil {
			return err
		}
		if wrapper.Date == nil {
			return fmt.Errorf("invalid date format: expected $date")
		}
		var long struct {
			NumberLong string `json:"$numberLong"`
		}
		if json.Unmarshal(wrapper.Date, &long) == nil && long.NumberLong != "" {
			return f.UnmarshalJSON([]byte(long.NumberLong))
		}
		return f.UnmarshalJSON(wrapper.Date)

	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid date format: %s", b)
		}
		f.Time = utils.FromUnixMilli(ms)
		return nil
	}
}

func (f FlexibleTime) MarshalJSON() ([]byte, error) {
	if f.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time.UTC().Format(time.RFC3339Nano))
}
