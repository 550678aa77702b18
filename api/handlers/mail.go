package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	er "github.com/mailhookhq/mailhook/internal/errors"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
	"github.com/mailhookhq/mailhook/services"
	"github.com/mailhookhq/mailhook/services/imap"
)

type MailHandler struct {
	services *services.Services
}

func NewMailHandler(s *services.Services) *MailHandler {
	return &MailHandler{services: s}
}

// FetchNewMail triggers an on-demand fetch cycle for one account
func (h *MailHandler) FetchNewMail() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MailHandler.FetchNewMail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountId")
		tracing.TagEntity(span, accountID)
		folder := c.Query("folder")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		result, err := h.services.EmailSyncService.FetchNewMail(ctx, accountID, folder, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			writeFetchError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"emails":         result.Emails,
				"count":          result.Count,
				"total":          result.Total,
				"lastFetchedUid": result.LastFetchedUID,
			},
		})
	}
}

// FetchNewMailAll triggers a fetch cycle for every account the caller owns.
// Individual account failures are tolerated and reflected in the counters.
func (h *MailHandler) FetchNewMailAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MailHandler.FetchNewMailAll", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		folder := c.Query("folder")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		result, err := h.services.EmailSyncService.FetchNewMailForUser(ctx, utils.GetUserIDFromContext(ctx), folder, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":           result.Success,
			"accountsProcessed": result.AccountsProcessed,
			"emailsFound":       result.EmailsFound,
			"results":           result.Results,
		})
	}
}

// writeFetchError maps sync failures onto HTTP statuses: bad credentials are
// the caller's problem (401), provider throttling asks them to back off
// (429), broken account state is a 4xx and everything else is a 500.
func writeFetchError(c *gin.Context, err error) {
	switch {
	case imap.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "isAuthError": true})
	case imap.IsThrottled(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "throttled": true})
	case errors.Is(err, er.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, er.ErrAccountInactive), errors.Is(err, er.ErrNeedsReconnection):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, er.ErrMissingIMAPSettings), errors.Is(err, er.ErrCredentialDecryption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
