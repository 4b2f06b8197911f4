package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carbontrack/notify"
	"github.com/cppla/carbontrack/utils"
)

// NotificationController serves the caller's notification feed. Feeds are
// keyed by ledger account id.
type NotificationController struct {
	center *notify.Center
}

func NewNotificationController(center *notify.Center) *NotificationController {
	return &NotificationController{center: center}
}

func (n *NotificationController) List(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	feed, err := n.center.Load(ctx.Request.Context(), accountID)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Success(ctx, feed)
}

func (n *NotificationController) MarkRead(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	unread, err := n.center.MarkRead(ctx.Request.Context(), accountID, ctx.Param("id"))
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"unread_count": unread})
}

func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	unread, err := n.center.MarkAllRead(ctx.Request.Context(), accountID)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"unread_count": unread})
}
