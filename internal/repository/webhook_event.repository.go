package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEventNotFound is returned when a webhook event does not exist.
var ErrEventNotFound = errors.New("webhook event not found")

// WebhookEventRepository stores every carrier event for audit and tracks
// its processing outcome.
type WebhookEventRepository struct {
	*pg.DB
}

func NewWebhookEventRepository(db *pg.DB) *WebhookEventRepository {
	return &WebhookEventRepository{
		db,
	}
}

// GetOrCreate inserts the event keyed by its provider-assigned event id.
// When the id was seen before, the stored record is returned and created
// is false; the caller decides whether processing already happened.
func (r *WebhookEventRepository) GetOrCreate(ctx context.Context, ev *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	entity := toWebhookEventEntity(ev)

	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(entity)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return toWebhookEventModel(entity), true, nil
	}

	existing, err := r.GetByEventID(ctx, ev.EventID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *WebhookEventRepository) GetByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var entity WebhookEventEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "event_id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return toWebhookEventModel(&entity), nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&WebhookEventEntity{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":        true,
			"processing_error": "",
			"next_attempt_at":  nil,
		}).Error
}

// MarkFailed records a processing failure and schedules the next attempt.
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, eventID, processingError string, retryCount int, nextAttemptAt time.Time) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&WebhookEventEntity{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processing_error": processingError,
			"retry_count":      retryCount,
			"next_attempt_at":  nextAttemptAt,
		}).Error
}

// MarkPermanentlyFailed ends retrying for an event. Such events require
// operator attention and are never silently dropped. An event another
// consumer already processed is left alone.
func (r *WebhookEventRepository) MarkPermanentlyFailed(ctx context.Context, eventID, processingError string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&WebhookEventEntity{}).
		Where("event_id = ? AND processed = ?", eventID, false).
		Updates(map[string]interface{}{
			"processing_error":   processingError,
			"permanently_failed": true,
			"next_attempt_at":    nil,
		}).Error
}

// ListUnprocessed returns events still awaiting a successful application,
// oldest first. Used by operator tooling.
func (r *WebhookEventRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var entities []*WebhookEventEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("processed = ? AND permanently_failed = ?", false, false).
		Order("received_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	models := make([]*model.WebhookEvent, len(entities))
	for i, e := range entities {
		models[i] = toWebhookEventModel(e)
	}
	return models, nil
}
