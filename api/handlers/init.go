package handlers

import (
	"github.com/mailhookhq/mailhook/internal/repository"
	"github.com/mailhookhq/mailhook/services"
)

type APIHandlers struct {
	Accounts *AccountsHandler
	Mail     *MailHandler
	Messages *MessagesHandler
	WhatsApp *WhatsAppHandler
}

func InitHandlers(s *services.Services, repos *repository.Repositories) *APIHandlers {
	return &APIHandlers{
		Accounts: NewAccountsHandler(s, repos),
		Mail:     NewMailHandler(s),
		Messages: NewMessagesHandler(repos),
		WhatsApp: NewWhatsAppHandler(s.WhatsAppService),
	}
}
