package reading

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sentinel marks a field the model did not report
const Sentinel = "--"

// Fields holds the five values read off the treadmill display
type Fields struct {
	Time     string `json:"time"`
	Calories string `json:"calories"`
	Speed    string `json:"speed"`
	Steps    string `json:"steps"`
	Distance string `json:"distance"`
}

// Empty returns a Fields value with every field set to the sentinel
func Empty() Fields {
	return Fields{
		Time:     Sentinel,
		Calories: Sentinel,
		Speed:    Sentinel,
		Steps:    Sentinel,
		Distance: Sentinel,
	}
}

// Summary formats the fields for status display
func (f Fields) Summary() string {
	return fmt.Sprintf("Time: %s | Cal: %s | Speed: %s | Steps: %s | Dist: %s",
		f.Time, f.Calories, f.Speed, f.Steps, f.Distance)
}

// CapturedReading is one analyzed frame
type CapturedReading struct {
	CapturedAt time.Time
	Fields
}

// persistedReading is the stored layout; timestamp is Unix milliseconds
type persistedReading struct {
	Timestamp int64  `json:"timestamp"`
	Time      string `json:"time"`
	Calories  string `json:"calories"`
	Speed     string `json:"speed"`
	Steps     string `json:"steps"`
	Distance  string `json:"distance"`
}

// MarshalJSON implements json.Marshaler
func (r CapturedReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(persistedReading{
		Timestamp: r.CapturedAt.UnixMilli(),
		Time:      r.Time,
		Calories:  r.Calories,
		Speed:     r.Speed,
		Steps:     r.Steps,
		Distance:  r.Distance,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Blank fields come back as the sentinel.
func (r *CapturedReading) UnmarshalJSON(data []byte) error {
	var p persistedReading
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	r.CapturedAt = time.UnixMilli(p.Timestamp)
	r.Fields = Fields{
		Time:     orSentinel(p.Time),
		Calories: orSentinel(p.Calories),
		Speed:    orSentinel(p.Speed),
		Steps:    orSentinel(p.Steps),
		Distance: orSentinel(p.Distance),
	}
	return nil
}

func orSentinel(s string) string {
	if s == "" {
		return Sentinel
	}
	return s
}
