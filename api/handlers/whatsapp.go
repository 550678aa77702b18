package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
	"github.com/mailhookhq/mailhook/services/whatsapp"
)

type WhatsAppHandler struct {
	service interfaces.WhatsAppService
}

func NewWhatsAppHandler(service interfaces.WhatsAppService) *WhatsAppHandler {
	return &WhatsAppHandler{service: service}
}

func (h *WhatsAppHandler) StartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "WhatsAppHandler.StartSession", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		err := h.service.StartSession(ctx, utils.GetUserIDFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			writeWhatsAppError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "session started"})
	}
}

func (h *WhatsAppHandler) SessionStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "WhatsAppHandler.SessionStatus", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		status, err := h.service.SessionStatus(utils.GetUserIDFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			writeWhatsAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

type sendTextRequest struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required"`
}

func (h *WhatsAppHandler) SendText() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "WhatsAppHandler.SendText", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req sendTextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := h.service.SendText(ctx, utils.GetUserIDFromContext(ctx), req.To, req.Body)
		if err != nil {
			tracing.TraceErr(span, err)
			writeWhatsAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	}
}

func (h *WhatsAppHandler) StopSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "WhatsAppHandler.StopSession", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		err := h.service.StopSession(utils.GetUserIDFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			writeWhatsAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "session stopped"})
	}
}

func writeWhatsAppError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, whatsapp.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, whatsapp.ErrSessionExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, whatsapp.ErrNotConfigured):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
