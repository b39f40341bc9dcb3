package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithLogDelivery logs notices instead of sending them.
func WithLogDelivery(logger *slog.Logger) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(LogSystem, &LogNotifier{Logger: logger})
		return nil
	}
}

func WithOneTimeCodeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		tmpl := NoticeTemplate{
			Subject: "Your verification code",
			Text:    "Your verification code is {{.Code}}. It expires in {{.ValidFor}}.",
			Html:    loadTemplate("templates/email/one_time_code.html"),
		}
		if err := nm.RegisterNotification(OneTimeCodeNotice, EmailSystem, tmpl); err != nil {
			return err
		}
		return nm.RegisterNotification(OneTimeCodeNotice, LogSystem, tmpl)
	}
}

func WithWelcomeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		tmpl := NoticeTemplate{
			Subject: "Your portal account",
			Text:    "An account was created for {{.Email}}. Sign in with the password your administrator gave you.",
		}
		if err := nm.RegisterNotification(WelcomeNotice, EmailSystem, tmpl); err != nil {
			return err
		}
		return nm.RegisterNotification(WelcomeNotice, LogSystem, tmpl)
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
