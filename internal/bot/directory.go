package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NameCache is an optional store for resolved names.
type NameCache interface {
	Get(ctx context.Context, id int64) (string, bool)
	Set(ctx context.Context, id int64, name string)
}

// Directory resolves participant names through getChat.
type Directory struct {
	tg    TelegramClient
	cache NameCache
}

// NewDirectory returns a directory; cache may be nil.
func NewDirectory(tg TelegramClient, cache NameCache) *Directory {
	return &Directory{tg: tg, cache: cache}
}

// DisplayName returns the participant's full name, their @username, or ""
// when Telegram does not know them.
func (d *Directory) DisplayName(ctx context.Context, id int64) string {
	if d.cache != nil {
		if name, ok := d.cache.Get(ctx, id); ok {
			return name
		}
	}
	chat, err := d.tg.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Int64("user_id", id).Msg("getChat failed")
		return ""
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" && chat.UserName != "" {
		name = "@" + chat.UserName
	}
	if name != "" && d.cache != nil {
		d.cache.Set(ctx, id, name)
	}
	return name
}
