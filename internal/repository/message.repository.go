package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrStaleState is returned when a guarded state update lost the
	// compare-and-set race.
	ErrStaleState = errors.New("message state changed concurrently")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.State == "" {
		msg.State = model.MessageStateQueued
	}
	if msg.Segments == 0 {
		msg.Segments = model.CountSegments(msg.Body)
	}
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "external_id = ?", externalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// UpdateState performs a guarded transition: the row is updated only while
// it still holds fromState. External id, once set, is never overwritten.
func (r *MessageRepository) UpdateState(ctx context.Context, id string, fromState, toState model.MessageState, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"state":      string(toState),
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ? AND state = ?", id, string(fromState)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// SetExternalID records the gateway id exactly once.
func (r *MessageRepository) SetExternalID(ctx context.Context, id, externalID string) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&MessageEntity{}).
		Where("id = ? AND external_id IS NULL", id).
		Updates(map[string]interface{}{"external_id": externalID, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// MessageFilter controls List queries.
type MessageFilter struct {
	Direction  *model.Direction
	CampaignID *string
	To         *string
	States     []model.MessageState
	From       *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
	Desc       bool
}

func (r *MessageRepository) List(ctx context.Context, f MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
	}
	if f.CampaignID != nil && *f.CampaignID != "" {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.To != nil && *f.To != "" {
		q = q.Where("to_number = ?", *f.To)
	}
	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, s := range f.States {
			states[i] = string(s)
		}
		q = q.Where("state IN ?", states)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

// LatestOutboundCampaign resolves the campaign that most recently messaged
// a recipient from a given sending number. Used to scope reply-keyword
// opt-outs.
func (r *MessageRepository) LatestOutboundCampaign(ctx context.Context, from, to string) (*string, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("direction = ? AND from_number = ? AND to_number = ? AND campaign_id IS NOT NULL",
			string(model.DirectionOutbound), from, to).
		Order("created_at DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entity.CampaignID, nil
}
