package telegram_bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"admin-console/internal/config"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
	got  chan struct{}
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	err := f.err
	f.mu.Unlock()
	f.got <- struct{}{}
	return tgbotapi.Message{}, err
}

func TestNotifyDeliversToChat(t *testing.T) {
	fs := &fakeSender{got: make(chan struct{}, 4)}
	b := newBot(fs, -100123, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	b.Notify(Event{Actor: "root", Action: "created staff", Target: "mod", At: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)})

	select {
	case <-fs.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not delivered")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.sent[0].ChatID != -100123 {
		t.Fatalf("sent to wrong chat %d", fs.sent[0].ChatID)
	}
	if want := "root created staff mod (2026-05-01 09:30 UTC)"; !strings.Contains(fs.sent[0].Text, want) {
		t.Fatalf("unexpected text %q", fs.sent[0].Text)
	}
}

func TestSendFailureKeepsRunning(t *testing.T) {
	fs := &fakeSender{got: make(chan struct{}, 4), err: errors.New("telegram down")}
	b := newBot(fs, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	b.Notify(Event{Actor: "a", Action: "b", Target: "c"})
	b.Notify(Event{Actor: "a", Action: "b", Target: "d"})
	for i := 0; i < 2; i++ {
		select {
		case <-fs.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d was not attempted", i)
		}
	}
}

func TestNotifyDropsWhenFull(t *testing.T) {
	b := newBot(&fakeSender{got: make(chan struct{}, 1)}, 1, zap.NewNop())
	for i := 0; i < queueSize+10; i++ {
		b.Notify(Event{Action: "x"})
	}
	if len(b.events) != queueSize {
		t.Fatalf("expected a full queue of %d, got %d", queueSize, len(b.events))
	}
}

func TestDisabledBot(t *testing.T) {
	cfg := &config.Config{}
	b, err := NewBot(cfg, zap.NewNop())
	if err != nil || b != nil {
		t.Fatalf("expected nil bot when disabled, got %v, %v", b, err)
	}
	b.Notify(Event{Action: "ignored"})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start on a nil bot: %v", err)
	}
}
