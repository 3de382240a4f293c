package schedule

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/config"
	"github.com/groupmate/groupmate/internal/event"
	"github.com/groupmate/groupmate/internal/infra/reg"
	"github.com/groupmate/groupmate/internal/observability"
)

// Graduated is emitted after a purge pass removed at least one group.
type Graduated struct {
	*event.Base
	Year   int64
	Groups int64
	Chats  int64
}

// PurgeGraduated removes groups whose graduation year has arrived, together
// with their chats. Runs only after the configured threshold date of the
// year. Graduation years are stored as two-digit codes.
func (s *Service) PurgeGraduated(ctx context.Context, cfg config.Schedule) error {
	now := s.now()
	threshold := time.Date(now.Year(), time.Month(cfg.GraduationMonth), cfg.GraduationDay, 0, 0, 0, 0, now.Location())
	if now.Before(threshold) {
		return nil
	}
	defer observability.StartJob("graduation_purge")()

	year := int64(now.Year() - 2000)
	groups, chats, err := s.client.PurgeGraduated(ctx, year)
	if err != nil {
		return err
	}
	if groups == 0 {
		return nil
	}
	// the purge has no record of which chats went with the groups
	reg.Get().Flush()

	observability.RecordPurgedGroups(groups)
	event.Bus.Enqueue(&Graduated{
		Base:   event.CreateBase(event.TypeGraduated, now.Add(24*time.Hour)),
		Year:   year,
		Groups: groups,
		Chats:  chats,
	})
	log.WithFields(log.Fields{
		"year":   year,
		"groups": groups,
		"chats":  chats,
	}).Info("graduated groups purged")
	return nil
}
