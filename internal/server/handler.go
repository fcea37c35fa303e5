// Package server exposes the ledger over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jimmy2002916/SimpleBanking/internal/cache"
	"github.com/jimmy2002916/SimpleBanking/internal/ledger"
)

const accountViewKeyPrefix = "account:view:"

// Ledger defines the ledger operations the HTTP layer depends on.
// Satisfied by *ledger.Service.
type Ledger interface {
	CreateAccount(name string, initialBalance decimal.Decimal) (string, error)
	Deposit(accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Transfer(fromID, toID string, amount decimal.Decimal) error
	GetAccount(accountID string) (ledger.Account, error)
	ListAccounts() []ledger.Account
	Save() error
	Load() error
}

// AccountView is the read model projection of an account.
type AccountView struct {
	AccountID string          `json:"accountId"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// Handler serves the account and transaction endpoints. views is the
// optional Redis read model: written through after every successful
// mutation, consulted first on single-account reads. A nil views means
// every read goes straight to the ledger.
type Handler struct {
	ledger Ledger
	views  *cache.ViewCache[AccountView]
}

func NewHandler(l Ledger, views *cache.ViewCache[AccountView]) *Handler {
	return &Handler{ledger: l, views: views}
}

// Register attaches the ledger routes to an (authenticated) group.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/accounts", h.CreateAccount)
	r.GET("/accounts", h.ListAccounts)
	r.GET("/accounts/:accountId", h.GetAccount)
	r.POST("/accounts/:accountId/deposits", h.Deposit)
	r.POST("/accounts/:accountId/withdrawals", h.Withdraw)
	r.POST("/transfers", h.Transfer)
	r.POST("/system/save", h.Save)
	r.POST("/system/load", h.Load)
}

// NewRouter assembles the full application router.
func NewRouter(h *Handler, auth *AuthHandler) *gin.Engine {
	router := gin.Default()
	router.Use(LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/v1/auth/login", auth.Login)
	router.POST("/v1/auth/refresh", auth.Refresh)

	v1 := router.Group("/v1", AuthMiddleware())
	h.Register(v1)

	return router
}

type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type TransferRequest struct {
	FromAccountID string          `json:"fromAccountId" validate:"required"`
	ToAccountID   string          `json:"toAccountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return
	}

	id, err := h.ledger.CreateAccount(req.Name, req.InitialBalance)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	view := AccountView{AccountID: id, Name: req.Name, Balance: req.InitialBalance}
	h.cacheView(c.Request.Context(), view)
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts := h.ledger.ListAccounts()
	views := make([]AccountView, len(accounts))
	for i, acct := range accounts {
		views[i] = accountToView(acct)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

func (h *Handler) GetAccount(c *gin.Context) {
	accountID := c.Param("accountId")

	if h.views != nil {
		if view, ok := h.views.Get(c.Request.Context(), accountViewKeyPrefix+accountID); ok {
			c.JSON(http.StatusOK, view)
			return
		}
	}

	acct, err := h.ledger.GetAccount(accountID)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	view := accountToView(acct)
	h.cacheView(c.Request.Context(), view)
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Deposit(c *gin.Context) {
	accountID := c.Param("accountId")

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.ledger.Deposit(accountID, req.Amount)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	h.refreshView(c.Request.Context(), accountID)
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "balance": balance})
}

func (h *Handler) Withdraw(c *gin.Context) {
	accountID := c.Param("accountId")

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.ledger.Withdraw(accountID, req.Amount)
	if err != nil {
		respondLedgerError(c, err)
		return
	}

	h.refreshView(c.Request.Context(), accountID)
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "balance": balance})
}

func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := ValidateRequest(req); validationErrors != nil {
		RespondWithValidationError(c, validationErrors)
		return
	}

	if err := h.ledger.Transfer(req.FromAccountID, req.ToAccountID, req.Amount); err != nil {
		respondLedgerError(c, err)
		return
	}

	ctx := c.Request.Context()
	fromBalance := h.refreshView(ctx, req.FromAccountID)
	toBalance := h.refreshView(ctx, req.ToAccountID)
	c.JSON(http.StatusOK, gin.H{
		"fromAccountId": req.FromAccountID,
		"toAccountId":   req.ToAccountID,
		"amount":        req.Amount,
		"fromBalance":   fromBalance,
		"toBalance":     toBalance,
	})
}

func (h *Handler) Save(c *gin.Context) {
	if err := h.ledger.Save(); err != nil {
		RespondWithError(c, http.StatusInternalServerError, "Failed to save ledger state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *Handler) Load(c *gin.Context) {
	if err := h.ledger.Load(); err != nil {
		RespondWithError(c, http.StatusInternalServerError, "Failed to load ledger state")
		return
	}
	for _, acct := range h.ledger.ListAccounts() {
		h.cacheView(c.Request.Context(), accountToView(acct))
	}
	c.JSON(http.StatusOK, gin.H{"status": "loaded"})
}

func accountToView(acct ledger.Account) AccountView {
	return AccountView{AccountID: acct.ID, Name: acct.Name, Balance: acct.Balance}
}

func (h *Handler) cacheView(ctx context.Context, view AccountView) {
	if h.views == nil {
		return
	}
	h.views.Set(ctx, accountViewKeyPrefix+view.AccountID, &view)
}

// refreshView re-reads the account and writes the view through to the
// cache, returning the fresh balance.
func (h *Handler) refreshView(ctx context.Context, accountID string) *decimal.Decimal {
	acct, err := h.ledger.GetAccount(accountID)
	if err != nil {
		return nil
	}
	view := accountToView(acct)
	h.cacheView(ctx, view)
	return &view.Balance
}

func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient funds")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrNegativeBalance):
		RespondWithError(c, http.StatusBadRequest, err.Error())
	default:
		RespondWithError(c, http.StatusInternalServerError, "Operation failed")
	}
}
