package config

import (
	"github.com/tendant/simple-portal/pkg/notification"
)

// EmailConfig holds SMTP email configuration. The memory backend uses it to
// deliver one-time codes; with an empty host codes are only logged.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// IsConfigured returns true if an SMTP host is set
func (e EmailConfig) IsConfigured() bool {
	return e.Host != ""
}
