package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/pg"
	"gorm.io/gorm/clause"
)

// OptOutRepository is the durable opt-out ledger. Records are append-only:
// a duplicate (number, scope, ref) insert is a silent no-op and revocation
// stamps revoked_at instead of deleting rows.
type OptOutRepository struct {
	*pg.DB
}

func NewOptOutRepository(db *pg.DB) *OptOutRepository {
	return &OptOutRepository{
		db,
	}
}

// Create inserts a record, ignoring the insert when the key already holds
// an active record. A revoked record under the same key is re-armed in
// place: the recipient opted out again after a START. Returns whether the
// suppression is newly in effect.
func (r *OptOutRepository) Create(ctx context.Context, rec *model.OptOutRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	entity := toOptOutEntity(rec)

	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}, {Name: "scope"}, {Name: "scope_ref"}},
			DoNothing: true,
		}).
		Create(entity)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	rearm := r.Write(ctx).WithContext(ctx).
		Model(&OptOutEntity{}).
		Where("phone_number = ? AND scope = ? AND scope_ref = ? AND revoked_at IS NOT NULL",
			entity.PhoneNumber, entity.Scope, entity.ScopeRef).
		Updates(map[string]interface{}{
			"revoked_at":        nil,
			"method":            entity.Method,
			"origin_message_id": entity.OriginMessageID,
			"created_at":        entity.CreatedAt,
		})
	if rearm.Error != nil {
		return false, rearm.Error
	}
	return rearm.RowsAffected > 0, nil
}

// FindActive returns every unrevoked record matching the candidate's
// campaign, its brand, or the global scope.
func (r *OptOutRepository) FindActive(ctx context.Context, phoneNumber, campaignID, brandID string) ([]*model.OptOutRecord, error) {
	var entities []*OptOutEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone_number = ? AND revoked_at IS NULL", phoneNumber).
		Where(
			r.Read(ctx).
				Where("scope = ?", string(model.OptOutScopeGlobal)).
				Or("scope = ? AND scope_ref = ?", string(model.OptOutScopeCampaign), campaignID).
				Or("scope = ? AND scope_ref = ?", string(model.OptOutScopeBrand), brandID),
		).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toOptOutModels(entities), nil
}

// Revoke stamps revoked_at on every active record for the number, in any
// scope. Used when a START keyword restores consent.
func (r *OptOutRepository) Revoke(ctx context.Context, phoneNumber string, at time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&OptOutEntity{}).
		Where("phone_number = ? AND revoked_at IS NULL", phoneNumber).
		Update("revoked_at", at)
	return res.RowsAffected, res.Error
}

// ListByNumber returns the full ledger history for a number, newest first.
func (r *OptOutRepository) ListByNumber(ctx context.Context, phoneNumber string) ([]*model.OptOutRecord, error) {
	var entities []*OptOutEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone_number = ?", phoneNumber).
		Order("created_at DESC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toOptOutModels(entities), nil
}
