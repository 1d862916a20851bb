package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const (
	baseContextKey = "base_context"
	TransportName  = "telegram"
)

type Bot struct {
	bot        *tele.Bot
	cfg        *config.TelegramConfig
	dispatcher core.Dispatcher
	sender     *sender
}

var _ core.Replier = (*Bot)(nil)

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	dispatcher core.Dispatcher,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:        b,
		cfg:        cfg,
		dispatcher: dispatcher,
		sender:     newSender(b),
	}

	// Handlers run with the signal context so they inherit the logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !bot.allowed(c) {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

// allowed admits the owner everywhere and anyone inside a listed group.
func (b *Bot) allowed(c tele.Context) bool {
	if c.Sender() == nil || c.Chat() == nil {
		return false
	}
	if c.Sender().ID == b.cfg.OwnerID {
		return true
	}
	return isGroup(c.Chat()) && b.cfg.IsAllowedGroup(c.Chat().ID)
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	meta := core.SenderMeta{
		Transport:  TransportName,
		ChatID:     strconv.FormatInt(c.Chat().ID, 10),
		SenderName: senderName(c.Sender()),
		Username:   c.Sender().Username,
		IsGroup:    isGroup(c.Chat()),
	}

	_ = c.Notify(tele.Typing)
	b.dispatcher.Dispatch(ctx, c.Text(), meta)
	return nil
}

// Reply sends a finished reply to the chat named in meta.
func (b *Bot) Reply(ctx context.Context, meta core.SenderMeta, text string) error {
	chatID, err := strconv.ParseInt(meta.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", meta.ChatID, err)
	}
	return b.sender.sendMarkdown(ctx, tele.ChatID(chatID), text, false)
}

func isGroup(chat *tele.Chat) bool {
	return chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup
}

func senderName(u *tele.User) string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}
