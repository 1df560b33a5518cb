package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestWhenResolver(t *testing.T) {
	t.Parallel()
	r := NewWhenResolver()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	got, err := r.Resolve("tomorrow 9am", base)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := base.Add(24 * time.Hour)
	if got.Year() != want.Year() || got.YearDay() != want.YearDay() {
		t.Fatalf("date = %v, want day of %v", got, want)
	}
	if got.Hour() != 9 || got.Minute() != 0 {
		t.Fatalf("clock = %02d:%02d, want 09:00", got.Hour(), got.Minute())
	}
}

func TestWhenResolverUnresolved(t *testing.T) {
	t.Parallel()
	r := NewWhenResolver()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, phrase := range []string{"", "   ", "blorp zzz"} {
		if _, err := r.Resolve(phrase, base); !errors.Is(err, ErrUnresolved) {
			t.Fatalf("Resolve(%q) err = %v, want ErrUnresolved", phrase, err)
		}
	}
}

func TestOccurrenceWithWhenResolver(t *testing.T) {
	t.Parallel()
	r := NewWhenResolver()
	day := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, time.UTC) }
	tests := []struct {
		name   string
		phrase string
		now    time.Time
		offset time.Duration
		want   time.Time
	}{
		{name: "today before the event", phrase: "today 18:00", now: day(11, 17, 44), offset: 24 * time.Hour, want: day(11, 18, 0)},
		{name: "today just before midnight", phrase: "today 18:00", now: day(11, 23, 59), offset: 24 * time.Hour, want: day(11, 18, 0)},
		{name: "bare time late evening", phrase: "9am", now: day(10, 23, 50), offset: 24 * time.Hour, want: day(10, 9, 0)},
		{name: "bare time after midnight", phrase: "9am", now: day(11, 0, 10), offset: 24 * time.Hour, want: day(11, 9, 0)},
		{name: "bare time rolls with a short anchor offset", phrase: "9am", now: day(10, 23, 50), offset: time.Hour, want: day(11, 9, 0)},
		{name: "upcoming bare time", phrase: "18:00", now: day(11, 17, 44), offset: 0, want: day(11, 18, 0)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Occurrence(r, tt.phrase, tt.now, tt.offset)
			if err != nil {
				t.Fatalf("Occurrence: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Occurrence(%q, %v) = %v, want %v", tt.phrase, tt.now, got, tt.want)
			}
		})
	}
}

func TestOccurrenceKeepsFixedDates(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	r := ResolverFunc(func(string, time.Time) (time.Time, error) { return fixed, nil })
	got, err := Occurrence(r, "jan 5 10am", time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(fixed) {
		t.Fatalf("fixed date moved to %v", got)
	}
}

func TestOccurrencePropagatesUnresolved(t *testing.T) {
	t.Parallel()
	if _, err := Occurrence(NewWhenResolver(), "blorp zzz", time.Now(), time.Hour); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
}
