package roster

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/db"
	"github.com/groupmate/groupmate/internal/infra/reg"
	"github.com/groupmate/groupmate/internal/schedule"
)

// Saved info and upcoming events of a group are managed by its admins.
// Both live in nullable text columns: an empty value is NULL, never "".

// SaveInfo appends a line to the group's saved info.
func (s *Service) SaveInfo(ctx context.Context, actorID int64, line string) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}

	info := line
	if group.Info != nil {
		info = *group.Info + "\n" + line
	}
	if err := s.client.SetGroupInfo(ctx, group.ID, &info); err != nil {
		return err
	}
	group.Info = &info
	log.WithField("group_id", group.ID).Info("info saved")
	return nil
}

// DeleteInfo removes one exact line from the group's saved info.
func (s *Service) DeleteInfo(ctx context.Context, actorID int64, line string) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}
	if group.Info == nil {
		return ErrNoInfo
	}

	lines := strings.Split(*group.Info, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l != line {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return ErrNoInfo
	}

	var info *string
	if len(kept) > 0 {
		joined := strings.Join(kept, "\n")
		info = &joined
	}
	if err := s.client.SetGroupInfo(ctx, group.ID, info); err != nil {
		return err
	}
	group.Info = info
	return nil
}

// ClearInfo drops the group's saved info entirely.
func (s *Service) ClearInfo(ctx context.Context, actorID int64) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}
	if group.Info == nil {
		return ErrNoInfo
	}
	if err := s.client.SetGroupInfo(ctx, group.ID, nil); err != nil {
		return err
	}
	group.Info = nil
	return nil
}

// AddEvent appends an event to the group's schedule.
func (s *Service) AddEvent(ctx context.Context, actorID int64, event schedule.Event) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}

	events := event.Line()
	if group.Events != nil {
		events = *group.Events + "\n" + events
	}
	if err := s.client.SetGroupEvents(ctx, group.ID, &events); err != nil {
		return err
	}
	group.Events = &events
	log.WithFields(log.Fields{"group_id": group.ID, "event": event.Line()}).Info("event added")
	return nil
}

// CancelEvent removes the event matching the given one, reminder opt-ins
// aside.
func (s *Service) CancelEvent(ctx context.Context, actorID int64, event schedule.Event) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}
	if group.Events == nil {
		return ErrNoEvents
	}

	events, err := schedule.ParseEvents(*group.Events)
	if err != nil {
		return err
	}
	kept := events[:0]
	for _, e := range events {
		if !sameEvent(e, event) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(events) {
		return ErrEventNotFound
	}
	return s.writeEvents(ctx, group.ID, kept)
}

// SetReminded records whether the student agreed to be reminded about the
// event.
func (s *Service) SetReminded(ctx context.Context, chatID int64, event schedule.Event, agree bool) error {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return err
	}
	group, err := s.group(ctx, record.GroupID)
	if err != nil {
		return err
	}
	if group.Events == nil {
		return ErrNoEvents
	}

	events, err := schedule.ParseEvents(*group.Events)
	if err != nil {
		return err
	}
	found := false
	for i, e := range events {
		if !sameEvent(e, event) {
			continue
		}
		found = true
		reminded := make([]int64, 0, len(e.Reminded)+1)
		for _, id := range e.Reminded {
			if id != chatID {
				reminded = append(reminded, id)
			}
		}
		if agree {
			reminded = append(reminded, chatID)
		}
		events[i].Reminded = reminded
	}
	if !found {
		return ErrEventNotFound
	}
	return s.writeEvents(ctx, group.ID, events)
}

// UpcomingEvents lists the group's events of a registered chat.
func (s *Service) UpcomingEvents(ctx context.Context, chatID int64) ([]schedule.Event, error) {
	record, err := s.chat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	group, err := s.group(ctx, record.GroupID)
	if err != nil {
		return nil, err
	}
	if group.Events == nil {
		return nil, nil
	}
	return schedule.ParseEvents(*group.Events)
}

// SetGraduation stores the group's two-digit graduation year code.
func (s *Service) SetGraduation(ctx context.Context, actorID int64, year int64) error {
	group, err := s.adminGroup(ctx, actorID)
	if err != nil {
		return err
	}
	if err := s.client.SetGroupGraduation(ctx, group.ID, year); err != nil {
		return err
	}
	group.Graduation = &year
	return nil
}

func (s *Service) writeEvents(ctx context.Context, groupID int64, events []schedule.Event) error {
	var value *string
	if len(events) > 0 {
		formatted := schedule.FormatEvents(events)
		value = &formatted
	}
	if err := s.client.SetGroupEvents(ctx, groupID, value); err != nil {
		return err
	}
	if group, err := s.group(ctx, groupID); err == nil {
		group.Events = value
	}
	return nil
}

func (s *Service) adminGroup(ctx context.Context, actorID int64) (*db.Group, error) {
	record, err := s.chat(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if record.EffectiveRole() < db.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.group(ctx, record.GroupID)
}

func (s *Service) group(ctx context.Context, groupID int64) (*db.Group, error) {
	if cached := reg.Get().GetGroup(groupID); cached != nil {
		return cached, nil
	}
	group, err := s.client.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	reg.Get().SetGroup(group)
	return group, nil
}

func sameEvent(a, b schedule.Event) bool {
	return a.Day == b.Day && a.Month == b.Month && a.HasTime == b.HasTime &&
		a.Hour == b.Hour && a.Minute == b.Minute && a.Text == b.Text
}
