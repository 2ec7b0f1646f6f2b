package chat

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedPoster throttles outbound thread replies per channel, since
// the chat platform rate limits message posting per channel.
type RateLimitedPoster struct {
	next  Poster
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimitedPoster(next Poster, rps float64, burst int) *RateLimitedPoster {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 3
	}
	return &RateLimitedPoster{
		next:     next,
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *RateLimitedPoster) PostReply(ctx context.Context, channelID, threadID, text string) error {
	if err := p.limiter(channelID).Wait(ctx); err != nil {
		return err
	}
	return p.next.PostReply(ctx, channelID, threadID, text)
}

func (p *RateLimitedPoster) limiter(channelID string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	limiter, ok := p.limiters[channelID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.rps), p.burst)
		p.limiters[channelID] = limiter
	}
	return limiter
}
