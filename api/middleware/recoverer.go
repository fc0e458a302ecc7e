package middleware

import (
	"fmt"
	"net/http"

	"github.com/lumera-social/lumera-backend/api/responses"
	pkgerrors "github.com/lumera-social/lumera-backend/pkg/errors"
	"github.com/lumera-social/lumera-backend/pkg/logger"
)

func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						// A panic can interrupt a request between a settlement
						// and its ledger write, so record who and where for
						// the reconciliation trail.
						fields := map[string]any{
							"panic":  rec,
							"method": r.Method,
							"path":   r.URL.Path,
						}
						if userID := UserIDFromContext(ctx); userID != "" {
							fields["user_id"] = userID
						}
						ctx = logg.WithFields(ctx, fields)
						logg.Error(ctx, "panic.recovered", err)
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
