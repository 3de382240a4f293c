package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/db"
	"github.com/groupmate/groupmate/internal/event"
	"github.com/groupmate/groupmate/internal/i18n"
	"github.com/groupmate/groupmate/internal/observability"
)

type (
	// Digest is the localized reminder text for one student, covering every
	// upcoming event they opted into, grouped by whole days left.
	Digest struct {
		ChatID   int64
		Language db.Language
		Text     string
	}

	// ReminderDue is put on the bus for each produced digest; delivery-side
	// subscribers pick it up.
	ReminderDue struct {
		*event.Base
		Digest Digest
	}

	Service struct {
		client db.Client
		now    func() time.Time
	}
)

func NewService(client db.Client) *Service {
	return &Service{client: client, now: time.Now}
}

// RunReminders walks every group that has events, prunes the passed ones and
// enqueues a reminder digest for each opted-in student.
func (s *Service) RunReminders(ctx context.Context) error {
	defer observability.StartJob("reminders")()

	groups, err := s.client.GroupsWithEvents(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, group := range groups {
		if err := s.remindGroup(ctx, &group, now); err != nil {
			log.WithError(err).WithField("group_id", group.ID).Error("cant remind group")
		}
	}
	return nil
}

func (s *Service) remindGroup(ctx context.Context, group *db.Group, now time.Time) error {
	events, err := ParseEvents(*group.Events)
	if err != nil {
		return err
	}

	upcoming := events[:0]
	for _, e := range events {
		if e.DaysLeft(now) >= 0 {
			upcoming = append(upcoming, e)
		}
	}

	if len(upcoming) != len(events) {
		var remaining *string
		if len(upcoming) > 0 {
			formatted := FormatEvents(upcoming)
			remaining = &formatted
		}
		if err := s.client.SetGroupEvents(ctx, group.ID, remaining); err != nil {
			return err
		}
	}
	if len(upcoming) == 0 {
		return nil
	}

	students, err := s.client.GroupStudents(ctx, group.ID)
	if err != nil {
		return err
	}

	digests := 0
	for _, student := range students {
		digest, ok := buildDigest(&student, upcoming, now)
		if !ok {
			continue
		}
		expiry := now.Add(24 * time.Hour)
		event.Bus.Enqueue(&ReminderDue{
			Base:   event.CreateBase(event.TypeReminderDue, expiry),
			Digest: digest,
		})
		observability.RecordReminderDigest(student.Language.Code())
		digests++
	}

	log.WithFields(log.Fields{
		"group_id": group.ID,
		"digests":  digests,
		"events":   len(upcoming),
	}).Info("group reminded")
	return nil
}

// buildDigest collects the events the student opted into, grouped by days
// left: today and tomorrow first, then the rest in ascending order.
func buildDigest(student *db.Chat, events []Event, now time.Time) (Digest, bool) {
	lang := student.Language.Code()
	byDays := map[int][]string{}
	for _, e := range events {
		if !e.IsReminded(student.ID) {
			continue
		}
		days := e.DaysLeft(now)
		weekdayName := i18n.Get(e.Weekday.String(), lang)
		byDays[days] = append(byDays[days], e.Display(weekdayName))
	}
	if len(byDays) == 0 {
		return Digest{}, false
	}

	days := make([]int, 0, len(byDays))
	for d := range byDays {
		days = append(days, d)
	}
	sort.Ints(days)

	sections := make([]string, 0, len(days))
	for _, d := range days {
		var header string
		switch d {
		case 0:
			header = i18n.Get("Today", lang)
		case 1:
			header = i18n.Get("Tomorrow", lang)
		default:
			header = fmt.Sprintf(i18n.Get("In %d days", lang), d)
		}
		sections = append(sections, header+":\n"+strings.Join(byDays[d], "\n"))
	}

	return Digest{
		ChatID:   student.ID,
		Language: student.Language,
		Text:     strings.Join(sections, "\n\n"),
	}, true
}
