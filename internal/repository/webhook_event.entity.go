package repository

import (
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

type WebhookEventEntity struct {
	ID                string     `db:"id"                 gorm:"primaryKey;column:id"`
	EventID           string     `db:"event_id"           gorm:"column:event_id;not null;uniqueIndex"`
	EventType         string     `db:"event_type"         gorm:"column:event_type;not null;index"`
	ResourceID        string     `db:"resource_id"        gorm:"column:resource_id;not null;index"`
	Payload           string     `db:"payload"            gorm:"column:payload;type:text;not null"`
	OccurredAt        time.Time  `db:"occurred_at"        gorm:"column:occurred_at"`
	ReceivedAt        time.Time  `db:"received_at"        gorm:"column:received_at;autoCreateTime"`
	Processed         bool       `db:"processed"          gorm:"column:processed;not null;default:false;index"`
	ProcessingError   string     `db:"processing_error"   gorm:"column:processing_error;type:text"`
	RetryCount        int        `db:"retry_count"        gorm:"column:retry_count;not null;default:0"`
	NextAttemptAt     *time.Time `db:"next_attempt_at"    gorm:"column:next_attempt_at"`
	PermanentlyFailed bool       `db:"permanently_failed" gorm:"column:permanently_failed;not null;default:false;index"`
}

func (WebhookEventEntity) TableName() string {
	return "webhook_events"
}

func toWebhookEventEntity(ev *model.WebhookEvent) *WebhookEventEntity {
	if ev == nil {
		return nil
	}
	return &WebhookEventEntity{
		ID:                ev.ID,
		EventID:           ev.EventID,
		EventType:         ev.EventType,
		ResourceID:        ev.ResourceID,
		Payload:           ev.Payload,
		OccurredAt:        ev.OccurredAt,
		ReceivedAt:        ev.ReceivedAt,
		Processed:         ev.Processed,
		ProcessingError:   ev.ProcessingError,
		RetryCount:        ev.RetryCount,
		NextAttemptAt:     ev.NextAttemptAt,
		PermanentlyFailed: ev.PermanentlyFailed,
	}
}

func toWebhookEventModel(e *WebhookEventEntity) *model.WebhookEvent {
	if e == nil {
		return nil
	}
	return &model.WebhookEvent{
		ID:                e.ID,
		EventID:           e.EventID,
		EventType:         e.EventType,
		ResourceID:        e.ResourceID,
		Payload:           e.Payload,
		OccurredAt:        e.OccurredAt,
		ReceivedAt:        e.ReceivedAt,
		Processed:         e.Processed,
		ProcessingError:   e.ProcessingError,
		RetryCount:        e.RetryCount,
		NextAttemptAt:     e.NextAttemptAt,
		PermanentlyFailed: e.PermanentlyFailed,
	}
}
