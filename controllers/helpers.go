package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/middleware"
	"github.com/cppla/carbontrack/notify"
	"github.com/cppla/carbontrack/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getAccountID(ctx *gin.Context) (string, bool) {
	id := ctx.GetString(middleware.ContextAccountIDKey)
	return id, id != ""
}

// queryLimit reads ?limit=, clamped to [1, max].
func queryLimit(ctx *gin.Context, def, max int) int {
	n, err := strconv.Atoi(ctx.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// respondLedgerError maps an error kind onto an HTTP status. Business rule
// rejections get a distinct code each so clients can branch on them.
func respondLedgerError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		utils.Error(ctx, http.StatusConflict, 40901, "insufficient points")
		return
	case errors.Is(err, ledger.ErrRewardUnavailable):
		utils.Error(ctx, http.StatusConflict, 40902, "reward unavailable")
		return
	case errors.Is(err, ledger.ErrAlreadyCheckedIn):
		utils.Error(ctx, http.StatusConflict, 40903, "already checked in today")
		return
	case errors.Is(err, ledger.ErrAccountExists):
		utils.Error(ctx, http.StatusConflict, 40904, "account already exists")
		return
	case errors.Is(err, notify.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40402, "notification not found")
		return
	}

	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		utils.Error(ctx, http.StatusBadRequest, 40020, err.Error())
	case ledger.KindNotFound:
		utils.Error(ctx, http.StatusNotFound, 40401, err.Error())
	case ledger.KindBusinessRule:
		utils.Error(ctx, http.StatusConflict, 40900, err.Error())
	case ledger.KindTransient:
		utils.Error(ctx, http.StatusServiceUnavailable, 50301, "temporarily unavailable, retry")
	default:
		utils.Sugar.Errorw("ledger request failed", "path", ctx.FullPath(), "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "internal error")
	}
}
