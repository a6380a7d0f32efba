package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is the day a schedule slot repeats on.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// Display returns the capitalised day name, e.g. "Monday".
func (d Weekday) Display() string {
	s := strings.ToLower(string(d))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ClockTime is a time of day stored as minutes since midnight.
type ClockTime int

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(value string) (ClockTime, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return ClockTime(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Scan implements sql.Scanner for TIME columns.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*c = ClockTime(v.Hour()*60 + v.Minute())
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("unsupported clock time type %T", src)
	}
}

func (c *ClockTime) scanString(v string) error {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		*c = ClockTime(t.Hour()*60 + t.Minute())
		return nil
	}
	parsed, err := ParseClock(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// MarshalJSON renders HH:MM.
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts HH:MM or HH:MM:SS.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Schedule is a weekly recurring slot of a batch.
type Schedule struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	DayOfWeek Weekday   `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_time" json:"start_time"`
	EndTime   ClockTime `db:"end_time" json:"end_time"`
	Room      string    `db:"room" json:"room"`
	Building  string    `db:"building" json:"building"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether two slots share a day and intersect as half-open ranges.
func (s Schedule) Overlaps(other Schedule) bool {
	return s.DayOfWeek == other.DayOfWeek && s.StartTime < other.EndTime && other.StartTime < s.EndTime
}

// Span renders "Monday 09:00-11:00".
func (s Schedule) Span() string {
	return fmt.Sprintf("%s %s-%s", s.DayOfWeek.Display(), s.StartTime, s.EndTime)
}

// HeldSchedule is a slot of a batch the student already occupies.
type HeldSchedule struct {
	Schedule
	CourseCode  string `db:"course_code"`
	BatchNumber int    `db:"batch_number"`
}

// CreateScheduleRequest adds a slot to a batch.
type CreateScheduleRequest struct {
	DayOfWeek Weekday `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
	Room      string  `json:"room" validate:"max=64"`
	Building  string  `json:"building" validate:"max=64"`
}

// ScheduleConflict describes one overlap between a requested slot and a held slot.
type ScheduleConflict struct {
	DayOfWeek           Weekday   `json:"day_of_week"`
	RequestedStart      ClockTime `json:"requested_start"`
	RequestedEnd        ClockTime `json:"requested_end"`
	ExistingBatchID     string    `json:"existing_batch_id"`
	ExistingCourseCode  string    `json:"existing_course_code"`
	ExistingBatchNumber int       `json:"existing_batch_number"`
	ExistingStart       ClockTime `json:"existing_start"`
	ExistingEnd         ClockTime `json:"existing_end"`
	Description         string    `json:"description"`
}
