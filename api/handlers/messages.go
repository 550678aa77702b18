package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/repository"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
)

type MessagesHandler struct {
	repos *repository.Repositories
}

func NewMessagesHandler(repos *repository.Repositories) *MessagesHandler {
	return &MessagesHandler{repos: repos}
}

// List returns a page of stored messages for one account folder
func (h *MessagesHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MessagesHandler.List", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("id")
		tracing.TagEntity(span, accountID)

		account, err := h.repos.AccountRepository.GetByID(ctx, accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if account == nil || account.UserID != utils.GetUserIDFromContext(ctx) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		folder := c.DefaultQuery("folder", "INBOX")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		messages, total, err := h.repos.MessageRepository.ListByAccountFolder(ctx, accountID, folder, limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		unread, err := h.repos.MessageRepository.CountUnread(ctx, accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": messages,
			"total":    total,
			"unread":   unread,
			"folder":   folder,
		})
	}
}

// MarkRead flips the read flag on a message
func (h *MessagesHandler) MarkRead() gin.HandlerFunc {
	return h.setFlag("MessagesHandler.MarkRead", func(c *gin.Context) (string, bool) {
		return "read", c.DefaultQuery("value", "true") == "true"
	})
}

// MarkStarred flips the starred flag on a message
func (h *MessagesHandler) MarkStarred() gin.HandlerFunc {
	return h.setFlag("MessagesHandler.MarkStarred", func(c *gin.Context) (string, bool) {
		return "starred", c.DefaultQuery("value", "true") == "true"
	})
}

func (h *MessagesHandler) setFlag(operationName string, decide func(*gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), operationName, c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		message, ok := h.ownedMessage(c, ctx, id)
		if !ok {
			return
		}

		flag, value := decide(c)
		var err error
		if flag == "read" {
			err = h.repos.MessageRepository.SetRead(ctx, message.ID, value)
		} else {
			err = h.repos.MessageRepository.SetStarred(ctx, message.ID, value)
		}
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "updated", "id": message.ID, flag: value})
	}
}

// ownedMessage loads the message and checks the calling user owns its
// account. Writes the error response and returns false when it doesn't.
func (h *MessagesHandler) ownedMessage(c *gin.Context, ctx context.Context, id string) (*models.Message, bool) {
	message, err := h.repos.MessageRepository.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if message == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return nil, false
	}

	account, err := h.repos.AccountRepository.GetByID(ctx, message.AccountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if account == nil || account.UserID != utils.GetUserIDFromContext(ctx) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return nil, false
	}
	return message, true
}

// Delete soft-deletes a message. The row is kept so the folder's UID cursor
// is unaffected and the provider copy is never touched.
func (h *MessagesHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MessagesHandler.Delete", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		message, ok := h.ownedMessage(c, ctx, id)
		if !ok {
			return
		}

		if err := h.repos.MessageRepository.SoftDelete(ctx, message.ID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "message deleted", "id": message.ID})
	}
}
