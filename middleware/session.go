package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/utils"
)

// SessionOpener opens the in-memory session for an account.
type SessionOpener interface {
	Open(ctx context.Context, id string) error
}

// SessionRequired makes sure the caller's account session is open before the
// handler runs. Open is idempotent, so a session released by the idle sweeper
// is transparently reloaded from storage.
func SessionRequired(svc SessionOpener) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		accountID := ctx.GetString(ContextAccountIDKey)
		if accountID == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "no account bound to token")
			return
		}
		if err := svc.Open(ctx.Request.Context(), accountID); err != nil {
			switch {
			case errors.Is(err, ledger.ErrNotFound):
				utils.Error(ctx, http.StatusUnauthorized, 40107, "account no longer exists")
			case ledger.KindOf(err) == ledger.KindTransient:
				utils.Error(ctx, http.StatusServiceUnavailable, 50301, "account temporarily unavailable")
			default:
				utils.Sugar.Errorw("open session failed", "account", accountID, "error", err)
				utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to open account")
			}
			return
		}
		ctx.Next()
	}
}
