package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cppla/carbontrack/ledger"
	"github.com/cppla/carbontrack/utils"
)

// LedgerController exposes the account commands of the ledger service.
type LedgerController struct {
	svc *ledger.Service
}

func NewLedgerController(svc *ledger.Service) *LedgerController {
	return &LedgerController{svc: svc}
}

// GetAccount returns the caller's committed account state.
func (l *LedgerController) GetAccount(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	acct, err := l.svc.Snapshot(ctx.Request.Context(), accountID)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Success(ctx, acct)
}

// ListEntries returns the newest journal entries first.
func (l *LedgerController) ListEntries(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	entries, err := l.svc.Entries(ctx.Request.Context(), accountID, queryLimit(ctx, 20, 100))
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"entries": entries})
}

// PurchaseOffset buys carbon offsets with points or tokens.
func (l *LedgerController) PurchaseOffset(ctx *gin.Context) {
	type request struct {
		ProjectID     string          `json:"project_id" binding:"required"`
		AmountTons    decimal.Decimal `json:"amount_tons"`
		PaymentMethod string          `json:"payment_method"`
	}
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = string(ledger.PayWithPoints)
	}
	method, err := ledger.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}

	receipt, err := l.svc.PurchaseOffset(ctx.Request.Context(), accountID, ledger.OffsetRequest{
		ProjectID:  req.ProjectID,
		AmountTons: req.AmountTons,
		Method:     method,
	})
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Created(ctx, receipt)
}

// RedeemReward spends points on the reward named in the path.
func (l *LedgerController) RedeemReward(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	receipt, err := l.svc.RedeemReward(ctx.Request.Context(), accountID, ctx.Param("id"))
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Created(ctx, receipt)
}

// RegisterScan records a scanned product code.
func (l *LedgerController) RegisterScan(ctx *gin.Context) {
	type request struct {
		QRCode string `json:"qr_code"`
	}
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}
	result, err := l.svc.RegisterScan(ctx.Request.Context(), accountID, req.QRCode)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Created(ctx, result)
}

// CheckIn records the daily check-in.
func (l *LedgerController) CheckIn(ctx *gin.Context) {
	accountID, ok := getAccountID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	receipt, err := l.svc.RecordCheckIn(ctx.Request.Context(), accountID)
	if err != nil {
		respondLedgerError(ctx, err)
		return
	}
	utils.Created(ctx, receipt)
}
