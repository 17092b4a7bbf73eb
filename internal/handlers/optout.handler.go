package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/services"
	xhttp "github.com/gyantigventure/telnyx-did-buy-sub000/pkg/http"
)

type OptOutService interface {
	Record(ctx context.Context, rec *model.OptOutRecord) (*model.OptOutRecord, error)
	Revoke(ctx context.Context, phoneNumber string) (int64, error)
	List(ctx context.Context, phoneNumber string) ([]*model.OptOutRecord, error)
}

type OptOutHandler struct {
	svc OptOutService
}

func RegisterOptOutRoutes(e *router.Group, h *OptOutHandler) {
	e.POST("/optouts", h.RecordOptOut)
	e.DELETE("/optouts", h.RevokeOptOuts)
	e.GET("/optouts", h.ListOptOuts)
}

func NewOptOutHandler(svc OptOutService) *OptOutHandler {
	return &OptOutHandler{svc: svc}
}

type recordOptOutRequest struct {
	PhoneNumber string `json:"phone_number"`
	Scope       string `json:"scope"`
	ScopeRef    string `json:"scope_ref,omitempty"`
	Method      string `json:"method"`
}

type optOutListResponse struct {
	Items []*model.OptOutRecord `json:"items"`
}

func (h *OptOutHandler) RecordOptOut(ctx *xhttp.RequestCtx) {
	var req recordOptOutRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	rec, err := h.svc.Record(ctx, &model.OptOutRecord{
		PhoneNumber: req.PhoneNumber,
		Scope:       model.OptOutScope(req.Scope),
		ScopeRef:    req.ScopeRef,
		Method:      model.OptOutMethod(req.Method),
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidOptOut) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, rec)
}

// RevokeOptOuts revokes every active record for a number. The records
// themselves stay readable through ListOptOuts.
func (h *OptOutHandler) RevokeOptOuts(ctx *xhttp.RequestCtx) {
	number := query(ctx, "number")
	revoked, err := h.svc.Revoke(ctx, number)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOptOut) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]int64{"revoked": revoked})
}

func (h *OptOutHandler) ListOptOuts(ctx *xhttp.RequestCtx) {
	number := query(ctx, "number")
	items, err := h.svc.List(ctx, number)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOptOut) {
			writeError(ctx, 400, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, optOutListResponse{Items: items})
}
