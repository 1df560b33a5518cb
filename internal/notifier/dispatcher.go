package notifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"tgremind/internal/transport"
	logx "tgremind/pkg/logx"
)

// ChatLister returns every chat currently known, refreshing the set first.
type ChatLister interface {
	Discover(ctx context.Context) ([]transport.ChatID, error)
}

type Config struct {
	// RatePerSec caps outgoing messages; <= 0 disables pacing.
	RatePerSec int
	ParseMode  string
	DryRun     bool
}

// Result summarizes one Send call.
type Result struct {
	Sent   int
	Failed int
	DryRun bool
}

type Dispatcher struct {
	sender  transport.Sender
	chats   ChatLister
	log     logx.Logger
	limiter *rate.Limiter
	opts    transport.SendOptions

	dryRun atomic.Bool
}

func New(cfg Config, sender transport.Sender, chats ChatLister, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	d := &Dispatcher{
		sender:  sender,
		chats:   chats,
		log:     log,
		limiter: lim,
		opts:    transport.SendOptions{ParseMode: cfg.ParseMode, DisablePreview: true},
	}
	d.dryRun.Store(cfg.DryRun)
	return d
}

func (d *Dispatcher) SetDryRun(v bool) { d.dryRun.Store(v) }

func (d *Dispatcher) DryRun() bool { return d.dryRun.Load() }

// Send delivers text to targets, or to every known chat when targets is nil.
// Failures do not stop the remaining sends; the first one is returned.
func (d *Dispatcher) Send(ctx context.Context, text string, targets []transport.ChatID) (Result, error) {
	if d.dryRun.Load() {
		d.log.Debug("message", logx.String("text", text), logx.Int("targets", len(targets)), logx.Bool("broadcast", targets == nil))
		return Result{DryRun: true}, nil
	}

	if targets == nil {
		ids, err := d.chats.Discover(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("broadcast: %w", err)
		}
		targets = ids
	}

	var (
		res      Result
		firstErr error
	)
	for _, id := range targets {
		if err := d.limiter.Wait(ctx); err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.log.Info("sending message", logx.Int64("chat", id))
		opts := d.opts
		if err := d.sender.SendText(ctx, id, text, &opts); err != nil {
			res.Failed++
			d.log.Warn("send failed", logx.Int64("chat", id), logx.Err(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("send to %d: %w", id, err)
			}
			continue
		}
		res.Sent++
	}
	return res, firstErr
}
