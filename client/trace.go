package client

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// tracingTransport logs every request line and header, then the response
// status and headers. Responses with status >= 300 are logged at error level.
type tracingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func newTracingTransport(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &tracingTransport{next: next, logger: logger}
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	t.logger.InfoContext(ctx, req.Method+" "+req.URL.String())
	logHeaders(t.logger, slog.LevelInfo, ">", req.Header, req)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.ErrorContext(ctx, "Request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, err
	}

	level := slog.LevelInfo
	if resp.StatusCode >= 300 {
		level = slog.LevelError
	}
	t.logger.Log(ctx, level, fmt.Sprintf("< %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	logHeaders(t.logger, level, "<", resp.Header, req)

	return resp, nil
}

func logHeaders(logger *slog.Logger, level slog.Level, prefix string, h http.Header, req *http.Request) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		logger.Log(req.Context(), level, prefix+" "+name+": "+strings.Join(h[name], ", "))
	}
}
