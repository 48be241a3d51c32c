// Package bot connects the engine to Telegram: it polls updates, turns them
// into engine events and delivers the engine's render requests.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topicvote/internal/engine"
	"topicvote/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Handler processes classified events.
type Handler interface {
	Handle(ctx context.Context, ev engine.Event) ([]engine.RenderRequest, error)
	OpenSessions() int
}

// Options tune polling and the outbound rate.
type Options struct {
	PollTimeout       int
	MessagesPerSecond float64
	Burst             int
}

// Bot polls Telegram and forwards updates to the handler.
type Bot struct {
	tg      TelegramClient
	handler Handler
	limiter *rate.Limiter
	opts    Options
	logger  *zerolog.Logger
}

// New wires a bot around an authorized client.
func New(tg TelegramClient, handler Handler, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 25
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Bot{
		tg:      tg,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst),
		opts:    opts,
		logger:  logger,
	}, nil
}

// Start polls updates until ctx is done. Updates are handled one at a time.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	ev, ok := classify(update)
	if !ok {
		return
	}
	kind := kindName(ev.Kind)
	l.Debug().
		Int64("user_id", ev.ParticipantID).
		Int64("chat_id", ev.ChatID).
		Str("kind", kind).
		Str("command", ev.Command).
		Msg("Handling update")

	started := time.Now()
	out, err := b.handler.Handle(ctx, ev)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		l.Error().Err(err).Msg("update handling failed")
	}
	metrics.ObserveUpdate(kind, outcome, time.Since(started))
	metrics.SetOpenSessions(b.handler.OpenSessions())

	b.deliver(ctx, update.CallbackQuery, out)
}

// deliver sends the render requests in order. A pressed button is always
// answered, with the first alert if there is one.
func (b *Bot) deliver(ctx context.Context, cbq *tgbotapi.CallbackQuery, out []engine.RenderRequest) {
	answered := false
	for _, r := range out {
		if r.Alert && cbq != nil && !answered {
			b.answer(ctx, cbq.ID, r.Text, true)
			answered = true
			continue
		}
		if err := b.render(ctx, r); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", r.ChatID).Msg("render failed")
		}
	}
	if cbq != nil && !answered {
		b.answer(ctx, cbq.ID, "", false)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := b.request(ctx, cfg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("callback answer failed")
	}
}

// send waits for the limiter and retries once when Telegram asks to back off.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.tg.Send(c)
	if wait, ok := retryAfter(err); ok {
		zerolog.Ctx(ctx).Warn().Dur("wait", wait).Msg("Rate limited by Telegram")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err = b.tg.Send(c)
	}
	if err != nil {
		metrics.IncSendError()
	}
	return err
}

func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := b.tg.Request(c)
	if err != nil {
		metrics.IncSendError()
	}
	return resp, err
}

func retryAfter(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == 429 && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// classify maps an update to an engine event. Updates without a sender or
// a chat are dropped.
func classify(update *tgbotapi.Update) (engine.Event, bool) {
	if q := update.CallbackQuery; q != nil {
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return engine.Event{}, false
		}
		action, err := engine.DecodeAction(q.Data)
		if err != nil {
			// Unknown payloads are answered and otherwise ignored.
			action = engine.Action{Kind: engine.ActNoop}
		}
		return engine.Event{
			Kind:          engine.KindButton,
			ParticipantID: q.From.ID,
			ChatID:        q.Message.Chat.ID,
			MessageID:     q.Message.MessageID,
			Private:       q.Message.Chat.IsPrivate(),
			Action:        action,
		}, true
	}

	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return engine.Event{}, false
	}
	ev := engine.Event{
		ParticipantID: m.From.ID,
		ChatID:        m.Chat.ID,
		Private:       m.Chat.IsPrivate(),
	}
	if m.IsCommand() {
		ev.Kind = engine.KindCommand
		ev.Command = m.Command()
		ev.Args = m.CommandArguments()
		return ev, true
	}
	if m.Text == "" {
		return engine.Event{}, false
	}
	ev.Kind = engine.KindText
	ev.Text = m.Text
	return ev, true
}

func kindName(k engine.EventKind) string {
	switch k {
	case engine.KindCommand:
		return "command"
	case engine.KindButton:
		return "button"
	}
	return "text"
}
