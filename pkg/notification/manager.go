package notification

import (
	"fmt"
	"sync"
)

// NotificationSystem represents a delivery channel.
type NotificationSystem string

// NoticeType names a notice, e.g. the one-time login code.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	LogSystem   NotificationSystem = "log"

	OneTimeCodeNotice NoticeType = "one_time_code"
	WelcomeNotice     NoticeType = "welcome"
)

// NotificationManager routes notices to registered notifiers.
type NotificationManager struct {
	mu                   sync.RWMutex
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template of a notice on a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" {
		return fmt.Errorf("invalid input: template for %s has no subject", noticeType)
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template for %s has no body", noticeType)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers the notice on every system that has both a notifier and a
// template for it. It fails if no system could take it.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	nm.mu.RLock()
	templates, exists := nm.notificationRegistry[noticeType]
	type delivery struct {
		system   NotificationSystem
		notifier Notifier
		template NoticeTemplate
	}
	var deliveries []delivery
	for system, template := range templates {
		if notifier, ok := nm.notifiers[system]; ok {
			deliveries = append(deliveries, delivery{system, notifier, template})
		}
	}
	nm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	if len(deliveries) == 0 {
		return fmt.Errorf("no notifier registered for notice type: %s", noticeType)
	}

	for _, d := range deliveries {
		if err := d.notifier.Send(noticeType, notification, d.template); err != nil {
			return fmt.Errorf("send %s via %s: %w", noticeType, d.system, err)
		}
	}
	return nil
}
