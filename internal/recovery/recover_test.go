package recovery

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRecoverToError(t *testing.T) {
	logger, buf := newBufferLogger()

	err := RecoverToError(logger, "parse", func() error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from panic")
	}
	if err.Error() != "parse panicked: boom" {
		t.Errorf("expected 'parse panicked: boom', got %q", err.Error())
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}

	sentinel := errors.New("plain failure")
	if err := RecoverToError(logger, "parse", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestRecoverToValue(t *testing.T) {
	logger, _ := newBufferLogger()

	v, err := RecoverToValue(logger, "count", func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	if err == nil {
		t.Fatal("expected error from panic")
	}
	if v != 0 {
		t.Errorf("expected zero value, got %d", v)
	}
}

func TestTrack(t *testing.T) {
	tests := []struct {
		name    string
		fn      func() error
		wantErr bool
		banner  string
	}{
		{"success", func() error { return nil }, false, "SUCCESS"},
		{"failure", func() error { return errors.New("no rows") }, true, "FAIL"},
		{"panic", func() error { panic("bad row") }, true, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger()

			start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			calls := 0
			now := func() time.Time {
				calls++
				return start.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
			}

			err := track(logger, "search", now, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}

			out := buf.String()
			for _, want := range []string{"Started", tt.banner, "duration=1.5s", "Finished", "2024-05-01T12:00:01Z"} {
				if !strings.Contains(out, want) {
					t.Errorf("expected log to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}
