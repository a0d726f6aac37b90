package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sharesphere/sharesphere/pkg/observability"
)

// BanSweeper periodically retires temporary bans whose horizon has
// passed and invalidates the affected snapshots. Enforcement does not
// depend on it: lapsed bans are ignored at check time and dropped on
// snapshot rebuild. The sweeper keeps the active set small.
type BanSweeper struct {
	store  *Store
	authz  snapshotInvalidator
	cron   *cron.Cron
	logger *observability.Logger
}

type snapshotInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64)
}

// NewBanSweeper creates the sweeper with the given cron schedule
// (e.g. "@every 10m").
func NewBanSweeper(store *Store, invalidator snapshotInvalidator, schedule string, logger *observability.Logger) (*BanSweeper, error) {
	sweeper := &BanSweeper{
		store:  store,
		authz:  invalidator,
		cron:   cron.New(),
		logger: logger,
	}

	if _, err := sweeper.cron.AddFunc(schedule, sweeper.run); err != nil {
		return nil, fmt.Errorf("failed to schedule ban sweep: %w", err)
	}
	return sweeper, nil
}

// Start begins the sweep schedule.
func (b *BanSweeper) Start() {
	b.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (b *BanSweeper) Stop() {
	<-b.cron.Stop().Done()
}

func (b *BanSweeper) run() {
	defer observability.RecoverPanic(b.logger, "ban sweep")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.Sweep(ctx); err != nil {
		b.logger.WithError(err).Error("ban sweep failed")
	}
}

// Sweep retires lapsed temporary bans once.
func (b *BanSweeper) Sweep(ctx context.Context) error {
	userIDs, err := b.store.SweepLapsedBans(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		b.authz.InvalidateUser(ctx, userID)
	}

	if len(userIDs) > 0 {
		b.logger.WithField("users", len(userIDs)).Info("lapsed bans swept")
	}
	return nil
}
