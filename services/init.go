package services

import (
	"github.com/mailhookhq/mailhook/config"
	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/crypto"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/repository"
	"github.com/mailhookhq/mailhook/services/imap"
	"github.com/mailhookhq/mailhook/services/webhook"
	"github.com/mailhookhq/mailhook/services/whatsapp"
)

type Services struct {
	Vault             *crypto.Vault
	ConnectionPool    *imap.ConnectionPool
	EmailSyncService  interfaces.EmailSyncService
	IdleService       interfaces.IdleService
	WebhookDispatcher interfaces.WebhookDispatcher
	WhatsAppService   interfaces.WhatsAppService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	vault, err := crypto.NewVault(cfg.AppConfig.EncryptionKey)
	if err != nil {
		return nil, err
	}

	dialer := imap.NewDialer()
	pool := imap.NewConnectionPool(dialer, log)
	dispatcher := webhook.NewDispatcher(log, cfg.AppConfig.WebhookURL)
	gate := webhook.NewGate()

	syncService := imap.NewIMAPService(
		log,
		repos.AccountRepository,
		repos.MessageRepository,
		pool,
		dialer,
		vault,
		dispatcher,
		gate,
	)

	idleService := imap.NewIdleMonitorWithVault(log, repos.AccountRepository, syncService, dialer, vault)

	services := Services{
		Vault:             vault,
		ConnectionPool:    pool,
		EmailSyncService:  syncService,
		IdleService:       idleService,
		WebhookDispatcher: dispatcher,
		WhatsAppService:   whatsapp.NewWhatsAppService(log, whatsapp.UnconfiguredFactory),
	}

	return &services, nil
}
