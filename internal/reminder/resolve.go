package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnresolved reports a date phrase without a usable event time.
var ErrUnresolved = errors.New("date phrase not understood")

// Resolver turns a free-text date phrase into an instant, relative to base.
type Resolver interface {
	Resolve(phrase string, base time.Time) (time.Time, error)
}

type ResolverFunc func(phrase string, base time.Time) (time.Time, error)

func (f ResolverFunc) Resolve(phrase string, base time.Time) (time.Time, error) {
	return f(phrase, base)
}

// Occurrence resolves phrase against now. Phrases that move with the base
// day ("9am", "today 18:00", "tomorrow") name an occurrence that recurs
// daily; when it falls before the anchor (now - anchorOffset) the next day's
// occurrence is used instead. Phrases naming a fixed date are returned as
// resolved.
func Occurrence(res Resolver, phrase string, now time.Time, anchorOffset time.Duration) (time.Time, error) {
	at, err := res.Resolve(phrase, now)
	if err != nil {
		return time.Time{}, err
	}
	if !at.Before(now.Add(-anchorOffset)) {
		return at, nil
	}
	next, err := res.Resolve(phrase, now.AddDate(0, 0, 1))
	if err != nil || !next.Equal(at.AddDate(0, 0, 1)) {
		return at, nil
	}
	return next, nil
}

// WhenResolver resolves English phrases ("tomorrow 9am", "friday 18:00")
// with github.com/olebedev/when. Results carry the base's location.
type WhenResolver struct {
	parser *when.Parser
}

func NewWhenResolver() *WhenResolver {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return &WhenResolver{parser: p}
}

func (r *WhenResolver) Resolve(phrase string, base time.Time) (time.Time, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return time.Time{}, fmt.Errorf("%w: empty phrase", ErrUnresolved)
	}
	res, err := r.parser.Parse(phrase, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnresolved, phrase, err)
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnresolved, phrase)
	}
	return res.Time, nil
}
