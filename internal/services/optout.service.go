package services

import (
	"context"
	"errors"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/prom"
)

var ErrInvalidOptOut = errors.New("invalid opt-out record")

type OptOutRepository interface {
	Create(ctx context.Context, rec *model.OptOutRecord) (bool, error)
	Revoke(ctx context.Context, phoneNumber string, at time.Time) (int64, error)
	ListByNumber(ctx context.Context, phoneNumber string) ([]*model.OptOutRecord, error)
}

// OptOutService is the API-facing surface of the opt-out ledger:
// programmatic and manual opt-outs, revocations, and audit reads.
// Reply-keyword opt-outs come in through the inbound processor instead.
type OptOutService struct {
	ledger OptOutRepository
}

func NewOptOutService(ledger OptOutRepository) *OptOutService {
	return &OptOutService{ledger: ledger}
}

// Record writes an opt-out. Recording the same number/scope twice is a
// no-op, not an error.
func (s *OptOutService) Record(ctx context.Context, rec *model.OptOutRecord) (*model.OptOutRecord, error) {
	if rec.PhoneNumber == "" {
		return nil, ErrInvalidOptOut
	}
	switch rec.Scope {
	case model.OptOutScopeGlobal:
	case model.OptOutScopeCampaign, model.OptOutScopeBrand:
		if rec.ScopeRef == "" {
			return nil, ErrInvalidOptOut
		}
	default:
		return nil, ErrInvalidOptOut
	}
	switch rec.Method {
	case model.OptOutMethodManual, model.OptOutMethodProgrammatic:
	default:
		return nil, ErrInvalidOptOut
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	created, err := s.ledger.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	if created {
		prom.IncOptOut(string(rec.Method))
		logger.Info("opt-out recorded", "number", rec.PhoneNumber, "scope", rec.Scope, "method", rec.Method)
	}
	return rec, nil
}

// Revoke logically revokes every active opt-out for a number. Records
// stay in the ledger for audit; only their active flag changes.
func (s *OptOutService) Revoke(ctx context.Context, phoneNumber string) (int64, error) {
	if phoneNumber == "" {
		return 0, ErrInvalidOptOut
	}
	return s.ledger.Revoke(ctx, phoneNumber, time.Now())
}

// List returns the full ledger history for a number, revoked records
// included.
func (s *OptOutService) List(ctx context.Context, phoneNumber string) ([]*model.OptOutRecord, error) {
	if phoneNumber == "" {
		return nil, ErrInvalidOptOut
	}
	return s.ledger.ListByNumber(ctx, phoneNumber)
}
