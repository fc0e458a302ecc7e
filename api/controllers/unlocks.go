package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumera-social/lumera-backend/api/responses"
	"github.com/lumera-social/lumera-backend/api/validators"
	"github.com/lumera-social/lumera-backend/internal/purchases"
	pkgerrors "github.com/lumera-social/lumera-backend/pkg/errors"
	"github.com/lumera-social/lumera-backend/pkg/logger"
)

type unlockRequest struct {
	PriceTokens int64 `json:"price_tokens" validate:"required,gt=0"`
}

type unlockResponse struct {
	Grant           any  `json:"grant"`
	AlreadyUnlocked bool `json:"already_unlocked"`
}

// UnlockItem charges the account and grants access to the item. Repeating the
// request for an already unlocked item returns the existing grant without a
// second charge.
func UnlockItem(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var body unlockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Unlock(r.Context(), purchases.UnlockInput{
			UserID:      userID,
			ItemID:      itemID,
			PriceTokens: body.PriceTokens,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.AlreadyUnlocked {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, unlockResponse{
			Grant:           result.Grant,
			AlreadyUnlocked: result.AlreadyUnlocked,
		})
	}
}

// UnlockList returns the caller's unlock grants, newest first.
func UnlockList(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grants, err := svc.ListGrants(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"unlocks": grants})
	}
}
