package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tgremind/internal/transport"
	logx "tgremind/pkg/logx"
)

type fakeMessenger struct {
	updates []transport.ChatID
	updErr  error
	descr   map[transport.ChatID]string
	failOn  transport.ChatID
}

func (f *fakeMessenger) Updates(context.Context) ([]transport.ChatID, error) {
	return f.updates, f.updErr
}

func (f *fakeMessenger) ChatDescription(_ context.Context, id transport.ChatID) (string, error) {
	if id == f.failOn {
		return "", errors.New("chat not found")
	}
	return f.descr[id], nil
}

func (f *fakeMessenger) SendText(context.Context, transport.ChatID, string, *transport.SendOptions) error {
	return nil
}

func fixedResolver(at time.Time) Resolver {
	return ResolverFunc(func(phrase string, _ time.Time) (time.Time, error) {
		if phrase == "never" {
			return time.Time{}, ErrUnresolved
		}
		return at, nil
	})
}

func TestSourceReminders(t *testing.T) {
	t.Parallel()
	event := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	m := &fakeMessenger{
		updates: []transport.ChatID{2, 3},
		descr: map[transport.ChatID]string{
			1: "REMINDER: tomorrow // Static chat",
			2: "",
			3: "intro\nREMINDER: never // Broken\nREMINDER: tomorrow // Works @here",
		},
	}
	src := NewSource(m, NewRegistry([]transport.ChatID{1}), fixedResolver(event), 24*time.Hour, logx.Nop())

	got, err := src.Reminders(context.Background(), event)
	if err != nil {
		t.Fatalf("Reminders: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reminders, want 3: %+v", len(got), got)
	}
	if got[0].ChatID != 1 || !got[0].Resolved() {
		t.Fatalf("first reminder = %+v", got[0])
	}
	if got[1].Name != "Broken" || got[1].Resolved() || !errors.Is(got[1].Err, ErrUnresolved) {
		t.Fatalf("unresolved reminder = %+v", got[1])
	}
	if got[2].Name != "Works" || !got[2].EventTime.Equal(event) {
		t.Fatalf("third reminder = %+v", got[2])
	}
	if src.Registry().Len() != 3 {
		t.Fatalf("registry len = %d, want 3", src.Registry().Len())
	}
}

func TestSourceResolvesAgainstNow(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	var bases []time.Time
	res := ResolverFunc(func(_ string, base time.Time) (time.Time, error) {
		bases = append(bases, base)
		return base, nil
	})
	m := &fakeMessenger{descr: map[transport.ChatID]string{5: "REMINDER: today // x"}}
	src := NewSource(m, NewRegistry([]transport.ChatID{5}), res, 24*time.Hour, logx.Nop())
	if _, err := src.Reminders(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if len(bases) != 1 || !bases[0].Equal(now) {
		t.Fatalf("resolver bases = %v, want [%v]", bases, now)
	}
}

func TestSourceContinuesPastUnavailableChat(t *testing.T) {
	t.Parallel()
	m := &fakeMessenger{
		descr: map[transport.ChatID]string{
			1: "REMINDER: a // first",
			3: "REMINDER: c // third",
		},
		failOn: 2,
	}
	src := NewSource(m, NewRegistry([]transport.ChatID{1, 2, 3}), fixedResolver(time.Now()), 0, logx.Nop())
	got, err := src.Reminders(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "get chat 2") {
		t.Fatalf("err = %v, want failure for chat 2", err)
	}
	if len(got) != 2 || got[0].ChatID != 1 || got[1].ChatID != 3 {
		t.Fatalf("reminders = %+v, want chats 1 and 3", got)
	}
}

func TestSourceFallsBackToKnownChats(t *testing.T) {
	t.Parallel()
	m := &fakeMessenger{
		updErr: errors.New("getUpdates: 502"),
		descr:  map[transport.ChatID]string{4: "REMINDER: a // known"},
	}
	src := NewSource(m, NewRegistry([]transport.ChatID{4}), fixedResolver(time.Now()), 0, logx.Nop())
	got, err := src.Reminders(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected discovery error")
	}
	if len(got) != 1 || got[0].Name != "known" {
		t.Fatalf("reminders = %+v", got)
	}
}
