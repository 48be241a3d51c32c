package bot

import (
	"context"
	"strings"

	"topicvote/internal/engine"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	maxMessageLen  = 4096
	maxButtonRunes = 60
	checkedMark    = "✅ "
	uncheckedMark  = "▫️ "
)

func (b *Bot) render(ctx context.Context, r engine.RenderRequest) error {
	if r.Attachment != nil {
		doc := tgbotapi.NewDocument(r.ChatID, tgbotapi.FileBytes{Name: r.Attachment.Name, Bytes: r.Attachment.Data})
		doc.Caption = r.Text
		return b.send(ctx, doc)
	}

	markup := keyboard(r)
	parseMode := ""
	if r.HTML {
		parseMode = tgbotapi.ModeHTML
	}

	if r.EditMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(r.ChatID, r.EditMessageID, r.Text)
		edit.ParseMode = parseMode
		edit.ReplyMarkup = markup
		err := b.send(ctx, edit)
		if err != nil && strings.Contains(err.Error(), "message is not modified") {
			zerolog.Ctx(ctx).Debug().Msg("edit skipped, message unchanged")
			return nil
		}
		return err
	}

	chunks := splitText(r.Text, maxMessageLen)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(r.ChatID, chunk)
		msg.ParseMode = parseMode
		msg.DisableWebPagePreview = true
		if i == len(chunks)-1 && markup != nil {
			msg.ReplyMarkup = *markup
		}
		if err := b.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// keyboard lays out items and buttons one per row. URL buttons are kept only
// where the request allows them.
func keyboard(r engine.RenderRequest) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range r.Items {
		mark := uncheckedMark
		if it.Checked {
			mark = checkedMark
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark+truncate(it.Label, maxButtonRunes), engine.EncodeAction(it.Action)),
		))
	}
	for _, btn := range r.Buttons {
		if btn.URL != "" {
			if !r.AllowURLButtons {
				continue
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL)))
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(btn.Label, maxButtonRunes), engine.EncodeAction(btn.Action)),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// splitText cuts text into chunks of at most limit bytes, preferring line breaks.
func splitText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func isRuneStart(c byte) bool {
	return c&0xC0 != 0x80
}
