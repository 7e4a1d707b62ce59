package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"rechargehub/internal/config"
	"rechargehub/internal/repository"
	"rechargehub/internal/service"
	"rechargehub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler bundles the API surface and wires the service graph.
type Handler struct {
	orchestrator *service.OrderOrchestrator
	reconciler   *service.CallbackReconciler
	wallet       *service.WalletService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	refRepo := repository.NewReferenceRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	lockTTL := time.Duration(cfg.Business.LockTimeoutSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	locker := service.NewRedisLocker(rdb, lockTTL)

	ledger := service.NewWalletLedger(db)
	router := service.NewProviderRouter(refRepo)
	executor := service.NewApiExecutor(refRepo, &http.Client{Timeout: cfg.Business.UpstreamTimeout()})
	refunder := service.NewRefundManager(ledger, reportRepo, outboxRepo, db)
	commission := service.NewCommissionEngine(ledger, userRepo, refRepo, reportRepo)

	orchestrator := service.NewOrderOrchestrator(
		ledger, userRepo, router, refRepo, refRepo, reportRepo,
		executor, commission, refunder, locker, outboxRepo, db,
		cfg.Business, cfg.Kafka.Topic,
	)
	reconciler := service.NewCallbackReconciler(
		reportRepo, refRepo, commission, refunder, outboxRepo, db, cfg.Kafka.Topic,
	)
	wallet := service.NewWalletService(ledger, userRepo, reportRepo, locker)

	return &Handler{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		wallet:       wallet,
	}
}

// RechargeRequest is one recharge submission.
type RechargeRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	ProviderID int64  `json:"provider_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Number     string `json:"number" binding:"required"`
	Pin        string `json:"pin" binding:"required"`
	StateID    int64  `json:"state_id"`
}

// Recharge submits one order.
// POST /api/v1/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "invalid amount")
		return
	}

	result, err := h.orchestrator.Submit(c.Request.Context(), service.SubmitRequest{
		UserID:     req.UserID,
		ProviderID: req.ProviderID,
		Amount:     amount,
		Number:     req.Number,
		Pin:        req.Pin,
		StateID:    req.StateID,
	})
	if err != nil {
		h.rechargeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) rechargeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPin):
		response.BusinessError(c, response.CodeInvalidPin, err.Error())
	case errors.Is(err, repository.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, service.ErrProviderNotFound):
		response.BusinessError(c, response.CodeProviderNotFound, err.Error())
	case errors.Is(err, service.ErrNoApiAvailable):
		response.BusinessError(c, response.CodeNoApiAvailable, err.Error())
	case errors.Is(err, service.ErrAmountBlocked):
		response.BusinessError(c, response.CodeAmountBlocked, err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUserDisabled),
		errors.Is(err, repository.ErrUserNotFound):
		response.ParamError(c, err.Error())
	default:
		response.BusinessError(c, response.CodeRechargeFailed, err.Error())
	}
}

// GetReceipt returns the buyer-facing view of one order.
// GET /api/v1/recharge/receipt?order_id=xxx
func (h *Handler) GetReceipt(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		response.ParamError(c, "order_id is required")
		return
	}
	receipt, err := h.wallet.GetReceipt(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, receipt)
}

// Callback receives the upstream's asynchronous verdict. Upstreams push
// GET with query parameters, so the route is a GET as well.
// GET /callback/recharge?uniqueid=xxx&status=xxx&operator_id=xxx&transaction_id=xxx
func (h *Handler) Callback(c *gin.Context) {
	orderID := c.Query("uniqueid")
	status := c.Query("status")
	if orderID == "" || status == "" {
		response.ParamError(c, "uniqueid and status are required")
		return
	}

	err := h.reconciler.OnCallback(
		c.Request.Context(),
		orderID,
		status,
		c.Query("operator_id"),
		c.Query("transaction_id"),
	)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "callback processed"})
}

// GetBalance returns an account's wallet balance.
// GET /api/v1/wallet/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid user_id")
		return
	}
	balance, err := h.wallet.GetBalance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(c, response.CodeNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"user_id": userID, "balance": balance})
}

// AddMoneyRequest funds a wallet from an external source.
type AddMoneyRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Remark string `json:"remark"`
}

// AddMoney credits a wallet.
// POST /api/v1/wallet/add-money
func (h *Handler) AddMoney(c *gin.Context) {
	var req AddMoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		response.ParamError(c, "invalid amount")
		return
	}

	remark := req.Remark
	if remark == "" {
		remark = "Add money"
	}
	entry, err := h.wallet.AddMoney(c.Request.Context(), req.UserID, amount, remark)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"order_id":        entry.OrderID,
		"transaction_no":  entry.TransactionNo,
		"closing_balance": entry.ClosingBalance,
	})
}

// TransferRequest moves funds between two wallets.
type TransferRequest struct {
	FromUserID int64  `json:"from_user_id" binding:"required"`
	ToUserID   int64  `json:"to_user_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Pin        string `json:"pin" binding:"required"`
}

// Transfer moves funds between two accounts.
// POST /api/v1/wallet/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		response.ParamError(c, "invalid amount")
		return
	}

	entry, err := h.wallet.Transfer(c.Request.Context(), req.FromUserID, req.ToUserID, amount, req.Pin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPin):
			response.BusinessError(c, response.CodeInvalidPin, err.Error())
		case errors.Is(err, repository.ErrInsufficientBalance):
			response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
		case errors.Is(err, service.ErrSelfTransfer),
			errors.Is(err, repository.ErrUserNotFound):
			response.ParamError(c, err.Error())
		default:
			response.BusinessError(c, response.CodeTransferFailed, err.Error())
		}
		return
	}
	response.Success(c, gin.H{
		"order_id":        entry.OrderID,
		"transaction_no":  entry.TransactionNo,
		"closing_balance": entry.ClosingBalance,
	})
}

// ListReports returns an account's statement, newest first.
// GET /api/v1/report/list?user_id=xxx&page=1&page_size=20
func (h *Handler) ListReports(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid user_id")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	reports, total, err := h.wallet.ListReports(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"total":   total,
		"page":    page,
		"reports": reports,
	})
}
