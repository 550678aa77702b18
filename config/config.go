package config

type AppConfig struct {
	APIPort string `env:"PORT,required" envDefault:"12222"`
	APIKey  string `env:"API_KEY,required"`

	// EncryptionKey protects stored IMAP passwords. Must be exactly 32 bytes.
	EncryptionKey string `env:"MAILHOOK_ENCRYPTION_KEY,required"`

	// WebhookURL receives the new_unseen_email notifications. Empty disables
	// outbound delivery without touching sync.
	WebhookURL string `env:"WEBHOOK_URL"`

	// EnableIdle starts the per-account IDLE monitors alongside the server
	EnableIdle bool `env:"ENABLE_IDLE" envDefault:"true"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILHOOK_POSTGRES_HOST,required"`
	Port            string `env:"MAILHOOK_POSTGRES_PORT,required"`
	User            string `env:"MAILHOOK_POSTGRES_USER,required"`
	DBName          string `env:"MAILHOOK_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILHOOK_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILHOOK_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILHOOK_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILHOOK_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILHOOK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILHOOK_POSTGRES_SSL_MODE" envDefault:"require"`
}
