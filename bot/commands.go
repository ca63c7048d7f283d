package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// allowed restricts commands to the configured owner chat.
func (t *TgBot) allowed(ctx *ext.Context) bool {
	return ctx.EffectiveChat != nil && ctx.EffectiveChat.Id == t.config.ChatId
}

func (t *TgBot) status(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if !t.allowed(ctx) {
		return nil
	}
	t.plainResponse(ctx.EffectiveChat.Id, t.statusText())
	return nil
}

func (t *TgBot) promotions(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if !t.allowed(ctx) {
		return nil
	}
	for _, part := range splitMessage(t.promotionsText(time.Now()), maxTelegramMessageLen) {
		t.plainResponse(ctx.EffectiveChat.Id, part)
	}
	return nil
}

func (t *TgBot) promotion(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if !t.allowed(ctx) {
		return nil
	}
	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(ctx.EffectiveChat.Id, "Usage: /promotion NAME")
		return nil
	}
	name := strings.Join(args[1:], " ")
	t.plainResponse(ctx.EffectiveChat.Id, t.promotionText(name, time.Now()))
	return nil
}

func (t *TgBot) statusText() string {
	return fmt.Sprintf("*Registry*\nowner: `%s`\nlive promotions: %d\ndropped notifications: %d",
		Sanitize(t.reader.Owner()), len(t.reader.Promotions()), t.Dropped())
}

func (t *TgBot) promotionsText(now time.Time) string {
	list := t.reader.Promotions()
	if len(list) == 0 {
		return "No live promotions"
	}
	var b strings.Builder
	b.WriteString("*Live promotions*")
	for _, p := range list {
		state := "active"
		if p.ExpiredAt(now) {
			state = "expired"
		}
		b.WriteString(fmt.Sprintf("\n%d\\. `%s` %d/%d customers, %s",
			p.Slot, Sanitize(p.Name), p.CurrentCustomerCount, p.MaxCustomers, state))
	}
	return b.String()
}

func (t *TgBot) promotionText(name string, now time.Time) string {
	slot, err := t.reader.SlotOf(name)
	if err != nil {
		return Sanitize(fmt.Sprintf("%s: %v", name, err))
	}
	p, err := t.reader.Promotion(slot)
	if err != nil {
		return Sanitize(fmt.Sprintf("%s: %v", name, err))
	}
	expiry := Sanitize(p.Expiry.UTC().Format(time.RFC3339))
	if p.ExpiredAt(now) {
		expiry += " \\(expired\\)"
	}
	return fmt.Sprintf("*%s*\nslot: %d\nexpiry: %s\ncustomers: %d/%d\nmax uses: %d\nparticipants: %d",
		Sanitize(p.Name), p.Slot, expiry, p.CurrentCustomerCount, p.MaxCustomers,
		p.MaxUsesPerCustomer, len(p.Participants))
}
