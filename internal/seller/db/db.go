package db

import (
	"context"
	"time"

	"hobbydork/internal/models"
	"hobbydork/internal/utils"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- USERS ----------------

func (d *DB) GetUserByID(uid string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("user_id = ?", uid).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) UpdateUser(user models.User) error {
	_, err := d.Bun.NewUpdate().
		Model(&user).
		Column("is_seller", "seller_status", "seller_tier", "stripe_account_id").
		Where("user_id = ?", user.UserID).
		Exec(context.Background())
	return err
}

// SetTierWithAudit changes a user's tier and writes the audit row in one
// transaction, so the trail can never drift from the live value.
func (d *DB) SetTierWithAudit(uid string, newTier models.SellerTier, changedBy, reason string) error {
	return d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var user models.User
		err := tx.NewSelect().
			Model(&user).
			Where("user_id = ?", uid).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}

		oldTier := user.SellerTier

		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("seller_tier = ?", newTier).
			Where("user_id = ?", uid).
			Exec(ctx)
		if err != nil {
			return err
		}

		change := models.TierChange{
			ChangeID:  utils.GenerateID("tierchange"),
			UserID:    uid,
			OldTier:   oldTier,
			NewTier:   newTier,
			ChangedBy: changedBy,
			Reason:    reason,
			CreatedAt: time.Now(),
		}
		_, err = tx.NewInsert().Model(&change).Exec(ctx)
		return err
	})
}

// ---------------- STORES ----------------

func (d *DB) GetStoreByID(storeID string) (*models.Store, error) {
	var store models.Store
	err := d.Bun.NewSelect().
		Model(&store).
		Where("store_id = ?", storeID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (d *DB) GetStoreByOwner(ownerUID string) (*models.Store, error) {
	var store models.Store
	err := d.Bun.NewSelect().
		Model(&store).
		Where("owner_uid = ?", ownerUID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (d *DB) CreateStore(store models.Store) error {
	_, err := d.Bun.NewInsert().Model(&store).Exec(context.Background())
	return err
}

// ---------------- APPLICATIONS ----------------

func (d *DB) GetApplicationByID(id string) (*models.SellerApplication, error) {
	var app models.SellerApplication
	err := d.Bun.NewSelect().
		Model(&app).
		Where("application_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (d *DB) CreateApplication(app models.SellerApplication) error {
	_, err := d.Bun.NewInsert().Model(&app).Exec(context.Background())
	return err
}

// DecideApplication settles a pending application and, on approval, marks
// the applicant a seller; both writes share one transaction.
func (d *DB) DecideApplication(applicationID string, approved bool, decidedBy string) error {
	return d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var app models.SellerApplication
		err := tx.NewSelect().
			Model(&app).
			Where("application_id = ?", applicationID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}

		status := models.ApplicationRejected
		if approved {
			status = models.ApplicationApproved
		}

		_, err = tx.NewUpdate().
			Model((*models.SellerApplication)(nil)).
			Set("status = ?", status).
			Set("decided_by = ?", decidedBy).
			Set("decided_at = ?", time.Now()).
			Where("application_id = ?", applicationID).
			Exec(ctx)
		if err != nil {
			return err
		}

		if approved {
			_, err = tx.NewUpdate().
				Model((*models.User)(nil)).
				Set("is_seller = ?", true).
				Set("seller_status = ?", models.SellerActive).
				Set("seller_tier = COALESCE(NULLIF(seller_tier, ''), ?)", models.TierBronze).
				Where("user_id = ?", app.UserID).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
