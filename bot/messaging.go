package bot

import (
	"fmt"
	"log/slog"

	"promoreg/internal/registry"
)

// Notify is a registry.Listener; it formats the event and queues it for the owner chat.
func (t *TgBot) Notify(evt registry.Event) {
	t.enqueue(formatEvent(evt))
}

// SendMessageWithLevel queues a log message when it reaches the configured level.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level < t.config.MinLevel {
		return
	}
	t.enqueue(msg)
}

func (t *TgBot) enqueue(msg string) {
	if msg == "" {
		return
	}
	select {
	case t.queue <- msg:
	default:
		if t.dropped.Add(1)%100 == 1 {
			t.log.With(slog.Int64("dropped", t.dropped.Load())).Warn("notification queue full")
		}
	}
}

func formatEvent(evt registry.Event) string {
	name := Sanitize(evt.Name)
	switch evt.Type {
	case registry.EventPromotionCreated:
		return fmt.Sprintf("*Promotion created*\n`%s` slot %d", name, evt.Slot)
	case registry.EventPromotionDeleted:
		return fmt.Sprintf("*Promotion deleted*\n`%s` slot %d", name, evt.Slot)
	case registry.EventPromotionApplied:
		return fmt.Sprintf("*Promotion applied*\n`%s` customer %s\nuses: %d; active customers: %d",
			name, Sanitize(evt.Customer), evt.Usage, evt.Customers)
	case registry.EventCustomerRemoved:
		return fmt.Sprintf("*Customer removed*\n`%s` customer %s\nactive customers: %d",
			name, Sanitize(evt.Customer), evt.Customers)
	}
	return ""
}
