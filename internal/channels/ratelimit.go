package channels

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Telegram tolerates short bursts into one chat.
const perChatBurst = 3

// RateLimiter paces outgoing Bot API calls with a bot-wide bucket and one
// bucket per chat. Reminder broadcasts hit the bot-wide limit, FAQ editing
// flows hit the per-chat one.
type RateLimiter struct {
	global *rate.Limiter

	chatLimit rate.Limit

	mu    sync.Mutex
	chats map[int64]*rate.Limiter
}

// NewRateLimiter allows perSecond calls overall with bursts of up to burst,
// and perChat calls per second into any single chat. Non-positive rates
// disable the corresponding limit.
func NewRateLimiter(perSecond float64, burst int, perChat float64) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		global:    rate.NewLimiter(limitOf(perSecond), burst),
		chatLimit: limitOf(perChat),
		chats:     make(map[int64]*rate.Limiter),
	}
}

func limitOf(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// Wait blocks until a call into chatID may proceed, or ctx ends. A zero
// chatID only waits for the bot-wide bucket.
func (r *RateLimiter) Wait(ctx context.Context, chatID int64) error {
	if chatID != 0 {
		if err := r.chat(chatID).Wait(ctx); err != nil {
			return err
		}
	}
	return r.global.Wait(ctx)
}

func (r *RateLimiter) chat(id int64) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.chats[id]
	if !ok {
		l = rate.NewLimiter(r.chatLimit, perChatBurst)
		r.chats[id] = l
	}
	return l
}
