package spotlight

import (
	"context"
	"fmt"
	"time"

	"hobbydork/internal/apperr"
	"hobbydork/internal/logger"
	"hobbydork/internal/models"
	"hobbydork/internal/utils"

	"github.com/uptrace/bun"
)

type Notifier interface {
	SpotlightActivated(store *models.Store, until time.Time)
}

// Service activates paid storefront spotlights. The slot insert and the
// store flag update share one transaction, so a crash mid-activation can
// never leave a paid-but-invisible spotlight.
type Service struct {
	Bun    *bun.DB
	Notify Notifier
	Log    *logger.Logger
	Window time.Duration
}

func NewService(bunDB *bun.DB, notify Notifier, log *logger.Logger, window time.Duration) *Service {
	return &Service{Bun: bunDB, Notify: notify, Log: log, Window: window}
}

// ActivateFromCheckout is called by the Stripe webhook when a spotlight
// purchase completes. Missing stores are not-found so the webhook can 404.
func (s *Service) ActivateFromCheckout(storeID string) (*models.SpotlightSlot, error) {
	now := time.Now()
	until := now.Add(s.Window)

	var store models.Store
	slot := models.SpotlightSlot{
		SlotID:    utils.GenerateID("spotlight"),
		StoreID:   storeID,
		StartAt:   now,
		EndAt:     until,
		Active:    true,
		CreatedAt: now,
	}

	err := s.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&store).
			Where("store_id = ?", storeID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return apperr.Wrap(apperr.NotFound, fmt.Sprintf("store %s not found", storeID), err)
		}

		slot.OwnerUID = store.OwnerUID
		if _, err := tx.NewInsert().Model(&slot).Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Store)(nil)).
			Set("is_spotlighted = ?", true).
			Set("spotlight_until = ?", until).
			Where("store_id = ?", storeID).
			Exec(ctx)
		return err
	})
	if err != nil {
		if apperr.CodeOf(err) == apperr.NotFound {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to activate spotlight", err)
	}

	s.Log.Info("SPOTLIGHT", fmt.Sprintf("Store %s spotlighted until %s", storeID, until.Format(time.RFC3339)))
	s.Notify.SpotlightActivated(&store, until)
	return &slot, nil
}

// ExpireStale clears the spotlight flag on stores whose window has passed.
// Run periodically; the slot rows stay as history.
func (s *Service) ExpireStale() (int, error) {
	res, err := s.Bun.NewUpdate().
		Model((*models.Store)(nil)).
		Set("is_spotlighted = ?", false).
		Where("is_spotlighted = ?", true).
		Where("spotlight_until <= ?", time.Now()).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		s.Log.Info("SPOTLIGHT", fmt.Sprintf("Expired %d stale spotlight(s)", affected))
	}
	return int(affected), nil
}
