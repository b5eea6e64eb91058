// Package gate decides whether a user may use the bot based on membership in
// the required channels.
package gate

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MemberLookup reports the membership status ("member", "left", ...) of a
// user in a channel.
type MemberLookup interface {
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

type Checker struct {
	channels []string
	lookup   MemberLookup
	log      *zap.Logger
}

func New(channels []string, lookup MemberLookup, log *zap.Logger) *Checker {
	return &Checker{channels: channels, lookup: lookup, log: log}
}

func (c *Checker) Channels() []string { return c.channels }

// Subscribed fails closed: a lookup error counts as not subscribed. The
// returned channel is the first one the user is missing from.
func (c *Checker) Subscribed(ctx context.Context, userID int64) (bool, string) {
	for _, ch := range c.channels {
		status, err := c.lookup.MemberStatus(ctx, ch, userID)
		if err != nil {
			c.log.Warn("membership check failed",
				zap.String("channel", ch), zap.Int64("user_id", userID), zap.Error(err))
			return false, ch
		}
		if status == "left" || status == "kicked" {
			return false, ch
		}
	}
	return true, ""
}

// Keyboard has one "subscribe" URL button per channel.
func Keyboard(channels []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Подписаться на "+ch, ChannelURL(ch)),
		))
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func ChannelURL(ch string) string {
	return "https://t.me/" + strings.TrimPrefix(ch, "@")
}
