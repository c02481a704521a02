package telemetry

import (
	"context"
	"time"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/client"
)

// Channel decorates a client.Channel with attempt counters and latency.
type Channel struct {
	next     client.Channel
	provider string
}

func InstrumentChannel(provider string, next client.Channel) *Channel {
	return &Channel{next: next, provider: provider}
}

func (c *Channel) Send(ctx context.Context, phone, text string) client.Result {
	start := time.Now()
	res := c.next.Send(ctx, phone, text)
	SendDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	class := "ok"
	if !res.Success {
		class = string(res.Class)
	}
	SendAttempts.WithLabelValues(c.provider, class).Inc()
	return res
}
