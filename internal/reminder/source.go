package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tgremind/internal/transport"
	logx "tgremind/pkg/logx"
)

// Reminder is a directive with its resolved event time. Err is set when the
// date phrase could not be resolved; EventTime is then zero.
type Reminder struct {
	Directive
	EventTime time.Time
	Err       error
}

func (r Reminder) Resolved() bool { return r.Err == nil && !r.EventTime.IsZero() }

// Source reads reminders from the descriptions of every known chat.
type Source struct {
	messenger    transport.Messenger
	registry     *Registry
	resolver     Resolver
	anchorOffset time.Duration
	log          logx.Logger
}

// NewSource builds a source. Daily occurrences older than now - anchorOffset
// roll to the next day (see Occurrence).
func NewSource(m transport.Messenger, reg *Registry, res Resolver, anchorOffset time.Duration, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{
		messenger:    m,
		registry:     reg,
		resolver:     res,
		anchorOffset: anchorOffset,
		log:          log,
	}
}

func (s *Source) Registry() *Registry { return s.registry }

// Discover pulls pending updates and returns every chat known so far.
func (s *Source) Discover(ctx context.Context) ([]transport.ChatID, error) {
	ids, err := s.messenger.Updates(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover chats: %w", err)
	}
	return s.registry.Discover(ids), nil
}

// Reminders re-reads every chat description and returns the reminders found.
// Chats without a description are skipped. API failures do not stop the
// scan: the chats already known are still read, and every failure is
// returned joined together with the reminders that could be collected.
func (s *Source) Reminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	var errs []error
	chats, err := s.Discover(ctx)
	if err != nil {
		s.log.Warn("discovery failed; using known chats", logx.Err(err))
		errs = append(errs, err)
		chats = s.registry.IDs()
	}

	var out []Reminder
	for _, id := range chats {
		descr, err := s.messenger.ChatDescription(ctx, id)
		if err != nil {
			s.log.Warn("chat unavailable", logx.Int64("chat", id), logx.Err(err))
			errs = append(errs, fmt.Errorf("get chat %d: %w", id, err))
			continue
		}
		if strings.TrimSpace(descr) == "" {
			s.log.Debug("chat has no description; skipping", logx.Int64("chat", id))
			continue
		}
		for _, d := range ParseDirectives(id, descr) {
			at, err := Occurrence(s.resolver, d.When, now, s.anchorOffset)
			out = append(out, Reminder{Directive: d, EventTime: at, Err: err})
		}
	}
	return out, errors.Join(errs...)
}
