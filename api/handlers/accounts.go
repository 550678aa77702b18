package handlers

import (
	"context"
	"net/http"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/gin-gonic/gin"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/repository"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
	"github.com/mailhookhq/mailhook/services"
	"github.com/mailhookhq/mailhook/services/imap"
)

type AccountsHandler struct {
	services *services.Services
	repos    *repository.Repositories
}

func NewAccountsHandler(s *services.Services, repos *repository.Repositories) *AccountsHandler {
	return &AccountsHandler{services: s, repos: repos}
}

type createAccountRequest struct {
	EmailAddress string `json:"emailAddress" binding:"required"`
	ImapHost     string `json:"imapHost" binding:"required"`
	ImapPort     int    `json:"imapPort" binding:"required"`
	ImapUsername string `json:"imapUsername" binding:"required"`
	ImapPassword string `json:"imapPassword" binding:"required"`
	ImapTLS      *bool  `json:"imapTls"`
}

// Create registers a mailbox. Credentials are verified with a real login
// before anything is stored, and the password is only ever persisted
// encrypted.
func (h *AccountsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AccountsHandler.Create", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		userID := utils.GetUserIDFromContext(ctx)

		var req createAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		syntaxValidation := mailvalidate.ValidateEmailSyntax(req.EmailAddress)
		if !syntaxValidation.IsValid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
			return
		}

		tls := utils.GetOrDefault(req.ImapTLS, true)

		creds := interfaces.IMAPCredentials{
			Host:     req.ImapHost,
			Port:     req.ImapPort,
			Username: req.ImapUsername,
			Password: req.ImapPassword,
			TLS:      tls,
		}
		if err := h.services.EmailSyncService.VerifyCredentials(ctx, creds); err != nil {
			tracing.TraceErr(span, err)
			if imap.IsAuthError(err) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "IMAP login failed", "isAuthError": true})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach IMAP server"})
			return
		}

		encrypted, err := h.services.Vault.Encrypt(req.ImapPassword)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credentials"})
			return
		}

		account := &models.Account{
			UserID:          userID,
			EmailAddress:    syntaxValidation.CleanEmail,
			ImapHost:        req.ImapHost,
			ImapPort:        req.ImapPort,
			ImapUsername:    req.ImapUsername,
			ImapPasswordEnc: encrypted,
			ImapTLS:         tls,
			IsActive:        true,
		}
		if err := h.repos.AccountRepository.Create(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "account added", "id": account.ID, "account": account})
	}
}

// List returns all accounts owned by the calling user
func (h *AccountsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AccountsHandler.List", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := h.repos.AccountRepository.GetByUserID(ctx, utils.GetUserIDFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		type accountView struct {
			*models.Account
			SyncState        string `json:"syncState"`
			ConnectionStatus string `json:"connectionStatus"`
		}
		views := make([]accountView, 0, len(accounts))
		for _, account := range accounts {
			views = append(views, accountView{
				Account:          account,
				SyncState:        account.SyncState().String(),
				ConnectionStatus: account.ConnectionStatus().String(),
			})
		}

		c.JSON(http.StatusOK, gin.H{"accounts": views, "count": len(views)})
	}
}

// Delete removes an account and all of its stored messages
func (h *AccountsHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AccountsHandler.Delete", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		account, err := h.loadOwnedAccount(c, ctx, id)
		if account == nil || err != nil {
			return
		}

		h.services.ConnectionPool.Evict(id)

		if err := h.repos.AccountRepository.Delete(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "account removed", "id": id})
	}
}

type reconnectRequest struct {
	ImapPassword string `json:"imapPassword" binding:"required"`
}

// Reconnect re-verifies credentials for a flagged account and clears the
// reconnection state on success.
func (h *AccountsHandler) Reconnect() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "AccountsHandler.Reconnect", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		account, err := h.loadOwnedAccount(c, ctx, id)
		if account == nil || err != nil {
			return
		}

		var req reconnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		creds := interfaces.IMAPCredentials{
			Host:     account.ImapHost,
			Port:     account.ImapPort,
			Username: account.ImapUsername,
			Password: req.ImapPassword,
			TLS:      account.ImapTLS,
		}
		if err := h.services.EmailSyncService.VerifyCredentials(ctx, creds); err != nil {
			tracing.TraceErr(span, err)
			if imap.IsAuthError(err) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "IMAP login failed", "isAuthError": true})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach IMAP server"})
			return
		}

		encrypted, err := h.services.Vault.Encrypt(req.ImapPassword)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credentials"})
			return
		}
		if err := h.repos.AccountRepository.UpdateCredentials(ctx, id, encrypted); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := h.repos.AccountRepository.ClearReconnection(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		h.services.ConnectionPool.Evict(id)

		c.JSON(http.StatusOK, gin.H{"status": "account reconnected", "id": id})
	}
}

// loadOwnedAccount fetches the account and enforces ownership. It writes the
// error response itself and returns nil when the caller should stop.
func (h *AccountsHandler) loadOwnedAccount(c *gin.Context, ctx context.Context, id string) (*models.Account, error) {
	account, err := h.repos.AccountRepository.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}
	if account == nil || account.UserID != utils.GetUserIDFromContext(ctx) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return nil, nil
	}
	return account, nil
}
