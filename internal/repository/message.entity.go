package repository

import (
	"encoding/json"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

type MessageEntity struct {
	ID            string    `db:"id"             gorm:"primaryKey;column:id"`
	ExternalID    *string   `db:"external_id"    gorm:"column:external_id;uniqueIndex"`
	Direction     string    `db:"direction"      gorm:"column:direction;not null;index"`
	FromNumber    string    `db:"from_number"    gorm:"column:from_number;not null"`
	ToNumber      string    `db:"to_number"      gorm:"column:to_number;not null;index"`
	Body          string    `db:"body"           gorm:"column:body;not null"`
	MediaURLs     string    `db:"media_urls"     gorm:"column:media_urls;type:text"`
	CampaignID    *string   `db:"campaign_id"    gorm:"column:campaign_id;index"`
	Segments      int       `db:"segments"       gorm:"column:segments;not null;default:1"`
	CostMicro     *int64    `db:"cost_micro"     gorm:"column:cost_micro"`
	State         string    `db:"state"          gorm:"column:state;not null;index"`
	FailureCode   string    `db:"failure_code"   gorm:"column:failure_code"`
	FailureDetail string    `db:"failure_detail" gorm:"column:failure_detail"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt     time.Time `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:            m.ID,
		ExternalID:    m.ExternalID,
		Direction:     string(m.Direction),
		FromNumber:    m.From,
		ToNumber:      m.To,
		Body:          m.Body,
		MediaURLs:     encodeMediaURLs(m.MediaURLs),
		CampaignID:    m.CampaignID,
		Segments:      m.Segments,
		CostMicro:     m.CostMicro,
		State:         string(m.State),
		FailureCode:   m.FailureCode,
		FailureDetail: m.FailureDetail,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:            e.ID,
		ExternalID:    e.ExternalID,
		Direction:     model.Direction(e.Direction),
		From:          e.FromNumber,
		To:            e.ToNumber,
		Body:          e.Body,
		MediaURLs:     decodeMediaURLs(e.MediaURLs),
		CampaignID:    e.CampaignID,
		Segments:      e.Segments,
		CostMicro:     e.CostMicro,
		State:         model.MessageState(e.State),
		FailureCode:   e.FailureCode,
		FailureDetail: e.FailureDetail,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}

// Media URIs are ordered; JSON keeps the ordering and sidesteps separator
// collisions inside URIs.
func encodeMediaURLs(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	b, _ := json.Marshal(urls)
	return string(b)
}

func decodeMediaURLs(s string) []string {
	if s == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(s), &urls); err != nil {
		return nil
	}
	return urls
}
