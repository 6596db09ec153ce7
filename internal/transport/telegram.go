package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"quakepost/internal/registry"
	logx "quakepost/pkg/logx"
)

// Telegram publishes bulletins to a channel or group through the Bot
// API. Bots are created lazily per token and reused across posts.
type Telegram struct {
	timeout time.Duration
	log     logx.Logger

	mu   sync.Mutex
	bots map[string]*tele.Bot
}

func NewTelegram(timeout time.Duration, log logx.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{timeout: timeout, log: log, bots: map[string]*tele.Bot{}}
}

func (t *Telegram) bot(token string) (*tele.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: &http.Client{Timeout: t.timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t.bots[token] = b
	return b, nil
}

func (t *Telegram) Post(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error) {
	b, err := t.bot(dest.Token)
	if err != nil {
		return "", err
	}

	// telebot has no context plumbing; run the send in a goroutine and
	// bound it with the caller's deadline.
	type result struct {
		msg *tele.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		var what any
		if strings.TrimSpace(mediaRef) != "" {
			what = &tele.Photo{File: tele.FromDisk(mediaRef), Caption: text}
		} else {
			what = text
		}
		msg, err := b.Send(tele.ChatID(dest.ChatID), what)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("telegram send: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("telegram send: %w", r.err)
		}
		return strconv.FormatInt(dest.ChatID, 10) + ":" + strconv.Itoa(r.msg.ID), nil
	}
}
