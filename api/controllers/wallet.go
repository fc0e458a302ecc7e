package controllers

import (
	"net/http"

	"github.com/lumera-social/lumera-backend/api/responses"
	"github.com/lumera-social/lumera-backend/api/validators"
	"github.com/lumera-social/lumera-backend/internal/wallet"
	"github.com/lumera-social/lumera-backend/pkg/logger"
)

type walletAddressRequest struct {
	Address string `json:"address" validate:"required"`
}

// WalletAddressUpdate links an external wallet address to the caller's account.
func WalletAddressUpdate(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body walletAddressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetWalletAddress(r.Context(), userID, body.Address); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"address": body.Address})
	}
}
