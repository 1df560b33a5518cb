package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"tgremind/internal/config"
	"tgremind/internal/notifier"
	"tgremind/internal/reminder"
	"tgremind/internal/transport"
	logx "tgremind/pkg/logx"
)

// ErrNoChats is returned by Init when no chat is configured or discovered.
var ErrNoChats = errors.New("no chats found: add the bot to a group or set CHATS")

// PollInterval is the fixed tick period.
const PollInterval = 60 * time.Second

// ReminderSource is the part of reminder.Source the loop needs.
type ReminderSource interface {
	Discover(ctx context.Context) ([]transport.ChatID, error)
	Reminders(ctx context.Context, now time.Time) ([]reminder.Reminder, error)
}

type Dispatcher interface {
	Send(ctx context.Context, text string, targets []transport.ChatID) (notifier.Result, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type LoopConfig struct {
	Lead       time.Duration
	MaxCatchUp time.Duration
	Location   *time.Location
}

type LoopOption func(*Loop)

func WithClock(c Clock) LoopOption {
	return func(l *Loop) { l.clock = c }
}

// WithHeartbeat registers fn to run after every cycle, failed or not.
func WithHeartbeat(fn func()) LoopOption {
	return func(l *Loop) { l.heartbeat = fn }
}

// WithReloads makes the loop apply configs received on ch between cycles.
func WithReloads(ch <-chan *config.Config, apply func(*config.Config)) LoopOption {
	return func(l *Loop) {
		l.reloads = ch
		l.apply = apply
	}
}

// Loop polls chat descriptions every PollInterval and sends reminders whose
// trigger windows fall inside (last, this]. All of its state is owned by the
// goroutine calling Run.
type Loop struct {
	src        ReminderSource
	disp       Dispatcher
	eval       reminder.Evaluator
	sched      cron.Schedule
	clock      Clock
	loc        *time.Location
	maxCatchUp time.Duration
	log        logx.Logger

	heartbeat func()
	reloads   <-chan *config.Config
	apply     func(*config.Config)

	last  time.Time
	fired map[string]time.Time
}

func NewLoop(cfg LoopConfig, src ReminderSource, disp Dispatcher, log logx.Logger, opts ...LoopOption) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	l := &Loop{
		src:        src,
		disp:       disp,
		eval:       reminder.Evaluator{Lead: cfg.Lead, PreDay: reminder.DefaultPreDay},
		sched:      cron.Every(PollInterval),
		clock:      realClock{},
		loc:        loc,
		maxCatchUp: cfg.MaxCatchUp,
		log:        log,
		fired:      map[string]time.Time{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Init runs the first discovery pass and sets the starting tick time.
func (l *Loop) Init(ctx context.Context) error {
	chats, err := l.src.Discover(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		return ErrNoChats
	}
	l.last = l.clock.Now().In(l.loc)
	l.log.Info("chats ready", logx.Int("count", len(chats)), logx.Any("chats", chats))
	return nil
}

// Run cycles until ctx is canceled. A failed cycle is logged and the next
// one re-covers its span; Run itself only returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if l.last.IsZero() {
		l.last = l.clock.Now().In(l.loc)
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := l.clock.Now().In(l.loc)
		if err := l.cycle(ctx, now); err != nil {
			l.log.Error("cycle failed", logx.Err(err))
		}
		if l.heartbeat != nil {
			l.heartbeat()
		}

		next := l.sched.Next(now)
		if !l.sleep(ctx, next) {
			return nil
		}
	}
}

// sleep waits until next, applying config reloads meanwhile. It reports false
// when ctx is done.
func (l *Loop) sleep(ctx context.Context, next time.Time) bool {
	for {
		wait := next.Sub(l.clock.Now())
		if wait <= 0 {
			return ctx.Err() == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-l.clock.After(wait):
			return ctx.Err() == nil
		case cfg, ok := <-l.reloads:
			if !ok {
				l.reloads = nil
				continue
			}
			if l.apply != nil && cfg != nil {
				l.apply(cfg)
			}
		}
	}
}

func (l *Loop) cycle(ctx context.Context, now time.Time) error {
	id := uuid.NewString()
	log := l.log.With(logx.String("cycle", id))

	last := l.last
	if l.maxCatchUp > 0 {
		if floor := now.Add(-l.maxCatchUp); last.Before(floor) {
			log.Warn("catch-up window capped", logx.Time("last", last), logx.Time("floor", floor))
			last = floor
		}
	}
	iv := reminder.Interval{Last: last, This: now}

	reminders, pollErr := l.src.Reminders(ctx, now)
	if pollErr != nil {
		log.Warn("poll incomplete", logx.Err(pollErr), logx.Int("reminders", len(reminders)))
	}

	var sendErr error
	for _, r := range reminders {
		if !r.Resolved() {
			log.Warn("date phrase not understood", logx.Int64("chat", r.ChatID), logx.String("phrase", r.When), logx.Err(r.Err))
			continue
		}
		ev, err := l.eval.Evaluate(r, iv)
		if err != nil {
			continue
		}
		for _, w := range ev.Due {
			key := firedKey(r, w)
			if _, ok := l.fired[key]; ok {
				log.Debug("window already sent", logx.Int64("chat", r.ChatID), logx.String("window", string(w.Kind)))
				continue
			}
			if _, err := l.disp.Send(ctx, r.Line, []transport.ChatID{r.ChatID}); err != nil {
				if sendErr == nil {
					sendErr = err
				}
				continue
			}
			l.fired[key] = w.At
		}
		log.Info("remind", logx.Int64("chat", r.ChatID), logx.String("name", r.Name), logx.Strs("in", ev.Remaining))
	}

	// Later intervals never start before iv.Last, failed cycle or not.
	l.prune(iv.Last)
	if err := errors.Join(pollErr, sendErr); err != nil {
		return fmt.Errorf("cycle %s: %w", id, err)
	}
	l.last = now
	l.prune(now)
	return nil
}

// prune forgets fired windows at or before floor.
func (l *Loop) prune(floor time.Time) {
	for k, at := range l.fired {
		if !at.After(floor) {
			delete(l.fired, k)
		}
	}
}

func firedKey(r reminder.Reminder, w reminder.Window) string {
	return fmt.Sprintf("%d|%s|%s|%d", r.ChatID, r.Line, w.Kind, w.At.Unix())
}
