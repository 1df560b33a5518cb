package reminder

import (
	"fmt"
	"time"
)

const (
	DefaultLead   = 5 * time.Minute
	DefaultPreDay = 4 * time.Hour
)

type WindowKind string

const (
	// WindowLead fires Lead before the event.
	WindowLead WindowKind = "lead"
	// WindowPreDay fires PreDay before the start of the event's day.
	WindowPreDay WindowKind = "pre_day"
)

// Window is an instant at which a reminder notification is due.
type Window struct {
	Kind WindowKind
	At   time.Time
}

// Interval is the half-open tick span (Last, This].
type Interval struct {
	Last time.Time
	This time.Time
}

// Contains reports whether Last < t <= This.
func (iv Interval) Contains(t time.Time) bool {
	return iv.Last.Before(t) && !t.After(iv.This)
}

// Evaluation is the outcome of checking one reminder against one interval.
type Evaluation struct {
	Windows []Window
	Due     []Window
	// Remaining holds "time until window" per window as hours ("1.25h"),
	// relative to the interval end. Negative values are in the past.
	Remaining []string
}

// Evaluator computes trigger windows. The zero value uses DefaultLead and
// DefaultPreDay.
type Evaluator struct {
	Lead   time.Duration
	PreDay time.Duration
}

// Windows returns the lead and pre-day windows of r, in that order.
func (e Evaluator) Windows(r Reminder) ([]Window, error) {
	if !r.Resolved() {
		if r.Err != nil {
			return nil, r.Err
		}
		return nil, ErrUnresolved
	}
	lead, preDay := e.Lead, e.PreDay
	if lead <= 0 {
		lead = DefaultLead
	}
	if preDay <= 0 {
		preDay = DefaultPreDay
	}
	return []Window{
		{Kind: WindowLead, At: r.EventTime.Add(-lead)},
		{Kind: WindowPreDay, At: startOfDay(r.EventTime).Add(-preDay)},
	}, nil
}

// Evaluate reports which windows of r fall inside iv. It is a pure function
// of its inputs. Unresolved reminders return an error and no due windows.
func (e Evaluator) Evaluate(r Reminder, iv Interval) (Evaluation, error) {
	ws, err := e.Windows(r)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{Windows: ws, Remaining: make([]string, 0, len(ws))}
	for _, w := range ws {
		if iv.Contains(w.At) {
			ev.Due = append(ev.Due, w)
		}
		ev.Remaining = append(ev.Remaining, formatHours(w.At.Sub(iv.This)))
	}
	return ev, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatHours(d time.Duration) string {
	return fmt.Sprintf("%.2fh", d.Hours())
}
