package ecampus

import (
	"context"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/groupmate/groupmate/internal/db"
	"github.com/groupmate/groupmate/internal/event"
	"github.com/groupmate/groupmate/internal/observability"
)

type (
	// Fetcher retrieves the current points balance of an e-campus login.
	Fetcher interface {
		FetchPoints(ctx context.Context, login, password string) (int64, error)
	}

	// PointsChanged is emitted when a sync pass observes a balance change.
	PointsChanged struct {
		*event.Base
		ChatID int64
		Login  string
		Old    *int64
		New    int64
	}

	Service struct {
		client  db.Client
		fetcher Fetcher
	}
)

func NewService(client db.Client, fetcher Fetcher) *Service {
	return &Service{client: client, fetcher: fetcher}
}

// Link stores a new account for the chat. Logins are globally unique, a
// second chat linking the same login fails on the constraint.
func (s *Service) Link(ctx context.Context, chatID int64, login, password string) error {
	return s.client.LinkECampusAccount(ctx, &db.ECampusAccount{
		ChatID:   chatID,
		Login:    login,
		Password: password,
	})
}

func (s *Service) Accounts(ctx context.Context, chatID int64) ([]db.ECampusAccount, error) {
	return s.client.ECampusAccounts(ctx, chatID)
}

// Sync refreshes the points of every linked account and flags the changes.
func (s *Service) Sync(ctx context.Context) error {
	defer observability.StartJob("ecampus_sync")()
	runID := uuid.New()
	l := log.WithField("run_id", runID)

	accounts, err := s.client.AllECampusAccounts(ctx)
	if err != nil {
		return err
	}

	changes := 0
	for _, account := range accounts {
		points, err := s.fetcher.FetchPoints(ctx, account.Login, account.Password)
		if err != nil {
			l.WithError(err).WithField("login", account.Login).Warn("cant fetch points")
			continue
		}
		if account.Points != nil && *account.Points == points {
			continue
		}
		if err := s.client.UpdateECampusPoints(ctx, account.Login, points); err != nil {
			l.WithError(err).WithField("login", account.Login).Error("cant update points")
			continue
		}
		observability.RecordPointsChange()
		event.Bus.Enqueue(&PointsChanged{
			Base:   event.CreateBase(event.TypePointsChanged, time.Now().Add(24*time.Hour)),
			ChatID: account.ChatID,
			Login:  account.Login,
			Old:    account.Points,
			New:    points,
		})
		changes++
	}

	l.WithFields(log.Fields{"accounts": len(accounts), "changes": changes}).Info("ecampus sync finishes")
	return nil
}

// Syncer runs the sync pass on a fixed interval. Implements
// lifecycle.Component.
type Syncer struct {
	service  *Service
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSyncer(service *Service, interval time.Duration) *Syncer {
	return &Syncer{service: service, interval: interval}
}

func (s *Syncer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := s.service.Sync(runCtx); err != nil {
					log.WithError(err).Error("ecampus sync failed")
				}
			}
		}
	}()
	return nil
}

func (s *Syncer) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
