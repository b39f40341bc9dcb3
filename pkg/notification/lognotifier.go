package notification

import (
	"log/slog"
)

// LogNotifier writes notices to the log instead of delivering them. Meant for
// local development without an SMTP server.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	text, err := render("text", template.Text, notification.Data)
	if err != nil {
		return err
	}
	if text == "" {
		text = notification.Body
	}

	logger.Info("notice (not delivered)", "type", noticeType, "to", notification.To, "subject", subject(notification, template), "body", text)
	return nil
}
