package repository

import (
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

type OptOutEntity struct {
	ID              string     `db:"id"                gorm:"primaryKey;column:id"`
	PhoneNumber     string     `db:"phone_number"      gorm:"column:phone_number;not null;uniqueIndex:ux_optout_key,priority:1"`
	Scope           string     `db:"scope"             gorm:"column:scope;not null;uniqueIndex:ux_optout_key,priority:2"`
	ScopeRef        string     `db:"scope_ref"         gorm:"column:scope_ref;not null;default:'';uniqueIndex:ux_optout_key,priority:3"`
	Method          string     `db:"method"            gorm:"column:method;not null"`
	OriginMessageID *string    `db:"origin_message_id" gorm:"column:origin_message_id"`
	RevokedAt       *time.Time `db:"revoked_at"        gorm:"column:revoked_at;index"`
	CreatedAt       time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (OptOutEntity) TableName() string {
	return "opt_outs"
}

func toOptOutEntity(rec *model.OptOutRecord) *OptOutEntity {
	if rec == nil {
		return nil
	}
	return &OptOutEntity{
		ID:              rec.ID,
		PhoneNumber:     rec.PhoneNumber,
		Scope:           string(rec.Scope),
		ScopeRef:        rec.ScopeRef,
		Method:          string(rec.Method),
		OriginMessageID: rec.OriginMessageID,
		RevokedAt:       rec.RevokedAt,
		CreatedAt:       rec.CreatedAt,
	}
}

func toOptOutModel(e *OptOutEntity) *model.OptOutRecord {
	if e == nil {
		return nil
	}
	return &model.OptOutRecord{
		ID:              e.ID,
		PhoneNumber:     e.PhoneNumber,
		Scope:           model.OptOutScope(e.Scope),
		ScopeRef:        e.ScopeRef,
		Method:          model.OptOutMethod(e.Method),
		OriginMessageID: e.OriginMessageID,
		RevokedAt:       e.RevokedAt,
		CreatedAt:       e.CreatedAt,
	}
}

func toOptOutModels(entities []*OptOutEntity) []*model.OptOutRecord {
	if entities == nil {
		return nil
	}
	models := make([]*model.OptOutRecord, len(entities))
	for i, e := range entities {
		models[i] = toOptOutModel(e)
	}
	return models
}
