package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Notifier receives formatted log records; implemented by bot.TgBot.
type Notifier interface {
	SendMessageWithLevel(msg string, level slog.Level)
}

// TelegramHandler is a slog.Handler that also forwards records at or above minLevel
// to a Notifier.
type TelegramHandler struct {
	handler  slog.Handler
	notifier Notifier
	minLevel slog.Level
	attrs    []slog.Attr
	group    string
}

func NewTelegramHandler(handler slog.Handler, notifier Notifier, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		notifier: notifier,
		minLevel: minLevel,
	}
}

// Enabled defers to the wrapped handler; forwarding is decided per record.
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level) || level >= h.minLevel
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.handler.Enabled(ctx, record.Level) {
		if err := h.handler.Handle(ctx, record); err != nil {
			return err
		}
	}
	if record.Level < h.minLevel || h.notifier == nil {
		return nil
	}

	var b strings.Builder
	message := record.Message
	if h.group != "" {
		message = h.group + "." + message
	}
	b.WriteString(fmt.Sprintf("*%s* `%s`", record.Level.String(), escape(message)))
	for _, attr := range h.attrs {
		b.WriteString(escape(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	record.Attrs(func(attr slog.Attr) bool {
		b.WriteString(escape(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
		return true
	})
	h.notifier.SendMessageWithLevel(b.String(), record.Level)
	return nil
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		notifier: h.notifier,
		minLevel: h.minLevel,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		notifier: h.notifier,
		minLevel: h.minLevel,
		attrs:    h.attrs,
		group:    group,
	}
}

// escape applies MarkdownV2 escaping
func escape(input string) string {
	const reserved = "\\_{}#+-.!|()[]=*`>~"
	var b strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reserved, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
