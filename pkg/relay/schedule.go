package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskbutler/pkg/model"
)

// ErrDateOnly marks a due value without a time of day.
var ErrDateOnly = errors.New("due has no time component")

// FireTime converts a due value into the wall-clock time a job should run
// at. A value with an explicit UTC marker is converted into loc; anything
// else is read as already being local to loc.
func FireTime(due *model.Due, loc *time.Location) (time.Time, error) {
	if due == nil || due.Value == "" {
		return time.Time{}, fmt.Errorf("task has no due date")
	}
	if !due.HasTime() {
		return time.Time{}, ErrDateOnly
	}
	if due.Timezone != "" {
		if tz, err := time.LoadLocation(due.Timezone); err == nil {
			loc = tz
		}
	}
	v := due.Value
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse due %q: %w", v, err)
		}
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse due %q: unknown layout", v)
}

// CronSpec renders t as a five-field cron expression firing at that minute on
// that day of that month.
func CronSpec(t time.Time) string {
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}
