package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/registerhq/retailcore-backend/api/responses"
	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/logger"
)

const actorIDHeader = "X-Actor-Id"

// RequireActor resolves the pre-authenticated cashier identity set by the
// store gateway. Requests without a valid actor header never reach the
// transaction services.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "actor header required"))
				return
			}
			actorID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "actor header must be a uuid"))
				return
			}

			ctx := WithActorID(r.Context(), actorID)
			if logg != nil {
				ctx = logg.WithActorID(ctx, actorID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
