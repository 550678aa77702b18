package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Background mail sync across all active accounts, every 5 minutes
	CronScheduleMailSync string `env:"CRON_SCHEDULE_MAIL_SYNC" envDefault:"0 */5 * * * *"`
}
