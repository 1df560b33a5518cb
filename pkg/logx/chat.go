package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tgremind/internal/transport"
)

const (
	chatMessageMax = 3500
	chatFieldMax   = 600
)

type chatLine struct {
	chatID transport.ChatID
	text   string
}

// chatSink forwards log lines to a Telegram chat from a single background
// worker. Lines are dropped rather than blocking the caller when the queue
// is full, the rate limit is hit, or the level is below the threshold.
type chatSink struct {
	sender transport.Sender
	queue  chan chatLine

	mu       sync.Mutex
	chatID   transport.ChatID
	minLevel zerolog.Level
	limit    *rate.Limiter
	cancel   context.CancelFunc
	done     chan struct{}
}

func newChatSink(sender transport.Sender) *chatSink {
	return &chatSink{sender: sender, queue: make(chan chatLine, 256)}
}

func (c *chatSink) configure(cfg TelegramConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = cfg.ChatID
	c.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	perSec := max(1, cfg.RatePerSec)
	c.limit = rate.NewLimiter(rate.Limit(perSec), perSec)

	if cfg.Enabled && c.cancel == nil && c.sender != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel, c.done = cancel, make(chan struct{})
		go c.run(ctx, c.done)
	}
}

func (c *chatSink) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case l := <-c.queue:
			_ = c.sender.SendText(ctx, l.chatID, l.text, &transport.SendOptions{DisablePreview: true})
		}
	}
}

func (c *chatSink) stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *chatSink) Write(p []byte) (int, error) { return c.WriteLevel(zerolog.InfoLevel, p) }

func (c *chatSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	chatID, minLevel, limit := c.chatID, c.minLevel, c.limit
	c.mu.Unlock()

	if chatID == 0 || c.sender == nil || level < minLevel || limit == nil || !limit.Allow() {
		return len(p), nil
	}
	if text := chatText(p); text != "" {
		select {
		case c.queue <- chatLine{chatID: chatID, text: text}:
		default:
		}
	}
	return len(p), nil
}

// chatText turns a JSON log line into "[LEVEL] message" followed by one
// "- key=value" line per remaining field, sorted by key.
func chatText(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var m map[string]any
	if json.Unmarshal([]byte(raw), &m) != nil {
		return clip(raw, chatMessageMax)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(lvl))
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	delete(m, "time")
	delete(m, "level")
	delete(m, "message")
	for _, k := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(&b, "\n- %s=%s", k, clip(fmt.Sprint(m[k]), chatFieldMax))
	}
	return clip(b.String(), chatMessageMax)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
