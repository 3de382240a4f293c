package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event is one line of the groups.events column. The wire format is
//
//	"W DD.MM[, HH:MM][ text]|id id id"
//
// where W is a Monday-based weekday digit and the ids after the pipe are the
// chats that agreed to be reminded.
type Event struct {
	Weekday  time.Weekday
	Day      int
	Month    time.Month
	Hour     int
	Minute   int
	HasTime  bool
	Text     string
	Reminded []int64
}

// Events within half a year in the past resolve as passed, older dates wrap
// to the next year.
const wrapWindowDays = 183

func ParseLine(line string) (Event, error) {
	body, _, remindedPart := rpartition(line, "|")

	if len(body) < 7 {
		return Event{}, errors.Errorf("event line too short: %q", line)
	}

	weekday, err := strconv.Atoi(body[0:1])
	if err != nil || weekday > 6 {
		return Event{}, errors.Errorf("bad weekday in event line: %q", line)
	}
	if body[1] != ' ' || body[4] != '.' {
		return Event{}, errors.Errorf("malformed event date: %q", line)
	}

	day, err := strconv.Atoi(body[2:4])
	if err != nil {
		return Event{}, errors.Wrapf(err, "bad day in event line %q", line)
	}
	month, err := strconv.Atoi(body[5:7])
	if err != nil || month < 1 || month > 12 {
		return Event{}, errors.Errorf("bad month in event line: %q", line)
	}

	event := Event{
		// wire weekday is Monday-based
		Weekday: time.Weekday((weekday + 1) % 7),
		Day:     day,
		Month:   time.Month(month),
	}

	rest := body[7:]
	if strings.HasPrefix(rest, ", ") && len(rest) >= 7 {
		hour, herr := strconv.Atoi(rest[2:4])
		minute, merr := strconv.Atoi(rest[5:7])
		if herr == nil && merr == nil && rest[4] == ':' {
			event.HasTime, event.Hour, event.Minute = true, hour, minute
			rest = rest[7:]
		}
	}
	event.Text = strings.TrimPrefix(rest, " ")

	for _, id := range strings.Fields(remindedPart) {
		chatID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return Event{}, errors.Wrapf(err, "bad reminded id in event line %q", line)
		}
		event.Reminded = append(event.Reminded, chatID)
	}

	return event, nil
}

func (e Event) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %02d.%02d", (int(e.Weekday)+6)%7, e.Day, int(e.Month))
	if e.HasTime {
		fmt.Fprintf(&b, ", %02d:%02d", e.Hour, e.Minute)
	}
	if e.Text != "" {
		b.WriteString(" " + e.Text)
	}
	b.WriteString("|")
	ids := make([]string, 0, len(e.Reminded))
	for _, id := range e.Reminded {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	b.WriteString(strings.Join(ids, " "))
	return b.String()
}

// Display renders the event without the reminded tail, with the weekday digit
// replaced by its name (already localized by the caller).
func (e Event) Display(weekdayName string) string {
	body, _, _ := rpartition(e.Line(), "|")
	return weekdayName + body[1:]
}

// IsReminded reports whether the chat opted into reminders for this event.
func (e Event) IsReminded(chatID int64) bool {
	for _, id := range e.Reminded {
		if id == chatID {
			return true
		}
	}
	return false
}

// DaysLeft resolves the event date to its nearest occurrence and returns the
// number of whole days from now's date to it. Negative means passed.
func (e Event) DaysLeft(now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	occurrence := time.Date(now.Year(), e.Month, e.Day, 0, 0, 0, 0, time.UTC)

	days := int(occurrence.Sub(today).Hours() / 24)
	if days < -wrapWindowDays {
		occurrence = occurrence.AddDate(1, 0, 0)
		days = int(occurrence.Sub(today).Hours() / 24)
	}
	return days
}

func ParseEvents(s string) ([]Event, error) {
	var events []Event
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		event, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func FormatEvents(events []Event) string {
	lines := make([]string, 0, len(events))
	for _, event := range events {
		lines = append(lines, event.Line())
	}
	return strings.Join(lines, "\n")
}

func rpartition(s, sep string) (string, string, string) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", ""
	}
	return s[:idx], sep, s[idx+len(sep):]
}
