package reading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoData is returned when the model response is not a JSON object
var ErrNoData = errors.New("no data detected")

// Parse normalizes a model response into the five display fields.
//
// The whole response must be a single JSON object. Text around the object is
// not stripped, so a response such as `Sure: {"speed":"3.0"}` yields ErrNoData.
// Missing or falsy values become the sentinel.
func Parse(text string) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if raw == nil {
		return Fields{}, fmt.Errorf("%w: response is null", ErrNoData)
	}

	return Fields{
		Time:     fieldValue(raw["time"]),
		Calories: fieldValue(raw["calories"]),
		Speed:    fieldValue(raw["speed"]),
		Steps:    fieldValue(raw["steps"]),
		Distance: fieldValue(raw["distance"]),
	}, nil
}

// fieldValue renders one JSON value as a display string
func fieldValue(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return Sentinel
	}

	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil || s == "" {
			return Sentinel
		}
		return s
	case '{', '[', 'n', 'f':
		// objects, arrays, null and false
		return Sentinel
	case 't':
		return "true"
	}

	// Numbers keep their literal form so "5.60" stays "5.60"
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || f == 0 {
		return Sentinel
	}
	return string(v)
}
