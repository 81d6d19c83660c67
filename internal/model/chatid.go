package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ChatID is a platform conversation identifier. Numeric identifiers travel as JSON
// numbers (the backend stores them as longs); anything else, such as a channel
// "@username", travels as a string.
type ChatID string

// Int64 returns the numeric form of the id.
func (c ChatID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(c), 10, 64)
	return n, err == nil
}

// String implements fmt.Stringer.
func (c ChatID) String() string {
	return string(c)
}

// MarshalJSON implements json.Marshaler.
func (c ChatID) MarshalJSON() ([]byte, error) {
	if n, ok := c.Int64(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ChatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat id must be a number or string: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("chat id must be an integer: %w", err)
	}
	*c = ChatID(n.String())
	return nil
}
