package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/config"
)

// PrivateAccess tracks users who have used the bot in a whitelisted group.
// Only they may talk to the bot in private chat while a whitelist is set.
type PrivateAccess struct {
	mu    sync.RWMutex
	users map[int64]struct{}
}

// NewPrivateAccess creates an empty PrivateAccess.
func NewPrivateAccess() *PrivateAccess {
	return &PrivateAccess{users: make(map[int64]struct{})}
}

// Allow marks a user as allowed to use private chat.
func (p *PrivateAccess) Allow(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = struct{}{}
}

// Allowed checks if a user is allowed to use private chat.
func (p *PrivateAccess) Allowed(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[userID]
	return ok
}

// permit decides whether an update from chat/sender is processed, recording
// group members for later private access.
func permit(cfg *config.Config, private *PrivateAccess, chat *tele.Chat, sender *tele.User) bool {
	if chat == nil || sender == nil {
		return false
	}

	if chat.Type == tele.ChatPrivate {
		return len(cfg.Whitelist.Chats) == 0 || private.Allowed(sender.ID)
	}

	if !cfg.IsChatAllowed(chat.ID) {
		return false
	}
	private.Allow(sender.ID)
	return true
}

// WhitelistMiddleware creates a middleware that drops updates from chats outside the whitelist.
func WhitelistMiddleware(cfg *config.Config, private *PrivateAccess) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !permit(cfg, private, c.Chat(), c.Sender()) {
				if chat := c.Chat(); chat != nil {
					log.Debug().
						Int64("chat_id", chat.ID).
						Str("chat_type", string(chat.Type)).
						Msg("Ignoring update from non-whitelisted chat")
				}
				return nil
			}
			return next(c)
		}
	}
}

// AdminMiddleware creates a middleware that checks if the user is an admin.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ 权限不足：需要管理员权限")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming updates.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("callback", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ 发生内部错误，请稍后重试")
				}
			}()
			return next(c)
		}
	}
}
