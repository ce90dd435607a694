// Package notify mirrors selected domain events to a Discord channel so
// the operator sees deals and messages without watching the terminal.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sealbot/sealbot/internal/config"
	"github.com/sealbot/sealbot/internal/listener"
	"github.com/sealbot/sealbot/internal/playerok"
)

const sendAttempts = 3

// Discord posts event summaries through the Discord REST API.
type Discord struct {
	session   *discordgo.Session
	channelID string
	events    config.DiscordEvents
	accountID string // own messages are not mirrored
}

// NewDiscord creates the notifier. accountID is the viewer id; messages
// authored by the account itself are skipped.
func NewDiscord(cfg config.DiscordConfig, accountID string) (*Discord, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord token and channelId are required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("notify: create discord session: %w", err)
	}
	return &Discord{
		session:   session,
		channelID: cfg.ChannelID,
		events:    cfg.Events,
		accountID: accountID,
	}, nil
}

// Kinds returns the event kinds enabled in config, for bus subscription.
func (d *Discord) Kinds() []listener.Kind {
	var kinds []listener.Kind
	if d.events.NewMessage {
		kinds = append(kinds, listener.KindNewMessage)
	}
	if d.events.NewDeal {
		kinds = append(kinds, listener.KindNewDeal)
	}
	if d.events.DealStatusChanged {
		kinds = append(kinds, listener.KindItemSent, listener.KindDealConfirmed,
			listener.KindDealRolledBack, listener.KindDealStatusChanged)
	}
	if d.events.DealProblems {
		kinds = append(kinds, listener.KindDealHasProblem, listener.KindDealProblemResolved)
	}
	return kinds
}

// Handle formats and posts one event. Implements bus.Handler.
func (d *Discord) Handle(ctx context.Context, ev listener.Event) error {
	text := d.format(ev)
	if text == "" {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if _, lastErr = d.session.ChannelMessageSend(d.channelID, text); lastErr == nil {
			return nil
		}
		slog.Debug("discord send failed", "attempt", attempt+1, "err", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return fmt.Errorf("send notification: %w", lastErr)
}

func (d *Discord) format(ev listener.Event) string {
	switch e := ev.(type) {
	case listener.NewMessage:
		msg := e.Message
		if msg.User == nil || msg.User.ID == d.accountID {
			return ""
		}
		return fmt.Sprintf("💬 **%s**: %s", msg.User.Username, preview(msg))
	case listener.NewDeal:
		return fmt.Sprintf("🛒 New deal `%s`: %s", e.Deal.ID, dealLine(e.Deal))
	case listener.ItemSent:
		return fmt.Sprintf("📦 Item sent for deal `%s`", e.Deal.ID)
	case listener.DealConfirmed:
		return fmt.Sprintf("✅ Deal `%s` confirmed: %s", e.Deal.ID, dealLine(e.Deal))
	case listener.DealRolledBack:
		return fmt.Sprintf("↩️ Deal `%s` rolled back: %s", e.Deal.ID, dealLine(e.Deal))
	case listener.DealHasProblem:
		return fmt.Sprintf("⚠️ Problem reported on deal `%s`: %s", e.Deal.ID, dealLine(e.Deal))
	case listener.DealProblemResolved:
		return fmt.Sprintf("🆗 Problem resolved on deal `%s`", e.Deal.ID)
	case listener.DealStatusChanged:
		return fmt.Sprintf("🔄 Deal `%s` status is now %s", e.Deal.ID, e.Deal.Status)
	default:
		return ""
	}
}

func preview(msg *playerok.Message) string {
	if msg.Text != "" {
		if len(msg.Text) > 300 {
			return msg.Text[:300] + "…"
		}
		return msg.Text
	}
	if msg.File != nil {
		return "[attachment] " + msg.File.Filename
	}
	return "[empty message]"
}

func dealLine(deal *playerok.Deal) string {
	buyer := "unknown buyer"
	if deal.User != nil {
		buyer = deal.User.Username
	}
	if deal.Item != nil {
		return fmt.Sprintf("%s — %.0f₽ from %s", deal.Item.Name, deal.Item.Price, buyer)
	}
	return "from " + buyer
}
