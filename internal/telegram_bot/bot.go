package telegram_bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"admin-console/internal/config"
)

const queueSize = 64

// Event is one confirmed change made through the console.
type Event struct {
	Actor  string
	Action string
	Target string
	At     time.Time
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot posts audit events to the admins' Telegram chat. A nil *Bot is a
// disabled feed; all of its methods are no-ops.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	chatID int64
	logger *zap.Logger
	events chan Event
}

// NewBot creates the audit bot, or returns nil when it is disabled.
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		logger.Info("Telegram audit feed is disabled (telegram.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	b := newBot(botAPI, cfg.Telegram.ChatID, logger)
	b.api = botAPI
	return b, nil
}

func newBot(s sender, chatID int64, logger *zap.Logger) *Bot {
	return &Bot{
		sender: s,
		chatID: chatID,
		logger: logger,
		events: make(chan Event, queueSize),
	}
}

// Notify queues an event without blocking. Events are dropped when the queue
// is full.
func (b *Bot) Notify(e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case b.events <- e:
	default:
		b.logger.Warn("Audit queue is full, dropping event",
			zap.String("action", e.Action), zap.String("target", e.Target))
	}
}

// Start delivers queued events and answers /start and /help until ctx ends.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	var updates tgbotapi.UpdatesChannel
	if b.api != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
	}

	b.logger.Info("Telegram audit feed started", zap.Int64("chat_id", b.chatID))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram audit feed shutting down...")
			if b.api != nil {
				b.api.StopReceivingUpdates()
			}
			return nil
		case e := <-b.events:
			b.deliver(e)
		case update := <-updates:
			if update.Message != nil && update.Message.IsCommand() {
				b.handleCommand(update.Message)
			}
		}
	}
}

func (b *Bot) deliver(e Event) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(b.chatID, formatEvent(e))); err != nil {
		b.logger.Error("Failed to send audit event",
			zap.String("action", e.Action), zap.String("target", e.Target), zap.Error(err))
		return
	}
	b.logger.Debug("Audit event sent", zap.String("action", e.Action))
}

func formatEvent(e Event) string {
	return fmt.Sprintf("🛠 %s %s %s (%s UTC)", e.Actor, e.Action, e.Target, e.At.UTC().Format("2006-01-02 15:04"))
}

// handleCommand only helps whoever sets the feed up find the chat id; the bot
// holds no backend credentials and takes no actions.
func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start", "help":
		b.sendMessage(message.Chat.ID,
			"This chat receives audit events from the admin console.\n"+
				"Chat ID: "+strconv.FormatInt(message.Chat.ID, 10))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help.")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
