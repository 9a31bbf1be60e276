package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField matches one field of a five-field cron expression. star records
// a field written as "*" or "*/n", which matters for the day fields.
type cronField struct {
	wildcard bool
	star     bool
	values   map[int]bool
}

func (f cronField) matches(v int) bool {
	return f.wildcard || f.values[v]
}

// parseCronField parses "*", "5", "1,15", "1-5", "*/15" and "10-40/10" within
// [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	f := cronField{star: strings.HasPrefix(field, "*"), values: map[int]bool{}}
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)

		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid step %q", s)
			}
			step = n
			part = base
		}

		start, end := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err error
			if start, err = strconv.Atoi(a); err != nil {
				return cronField{}, fmt.Errorf("invalid range start %q", a)
			}
			if end, err = strconv.Atoi(b); err != nil {
				return cronField{}, fmt.Errorf("invalid range end %q", b)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid value %q", part)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		if start < lo || end > hi || start > end {
			return cronField{}, fmt.Errorf("value out of range [%d-%d] in %q", lo, hi, field)
		}
		for v := start; v <= end; v += step {
			f.values[v] = true
		}
	}
	return f, nil
}

// cronSchedule is a parsed "minute hour day-of-month month day-of-week"
// expression evaluated in UTC. Day-of-week accepts 0 or 7 for Sunday. As in
// standard cron, when both day fields are restricted a time matches if
// either one does.
type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.month.matches(int(t.Month())) &&
		c.dayMatches(t)
}

func (c cronSchedule) dayMatches(t time.Time) bool {
	dom := c.dom.matches(t.Day())
	dow := c.dow.matches(int(t.Weekday()))
	if c.dom.star || c.dow.star {
		return dom && dow
	}
	return dom || dow
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 7}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, field := range fields {
		f, err := parseCronField(field, bounds[i][0], bounds[i][1])
		if err != nil {
			return cronSchedule{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = f
	}
	if dow := parsed[4]; dow.values[7] {
		delete(dow.values, 7)
		dow.values[0] = true
	}
	return cronSchedule{
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    parsed[4],
	}, nil
}

// ValidateCron reports whether expr is a supported cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

// nextCronTime returns the first minute strictly after 'after' matching expr.
// It searches up to one year ahead.
func nextCronTime(expr string, after time.Time) (time.Time, error) {
	sched, err := parseCron(expr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if sched.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year for %q", expr)
}
