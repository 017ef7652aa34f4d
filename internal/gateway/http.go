package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"storyvox/internal/logging"
)

// maxResponseBytes bounds how much of a response body Fetch will buffer.
const maxResponseBytes = 64 << 20

// Response is the buffered result of an HTTP invocation.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetch sends req for operation op. Non-2xx responses are returned as
// KindExternalFailure errors; dial and DNS failures as KindUnavailable.
func (g *Gateway) Fetch(ctx context.Context, op Operation, req *http.Request) (Response, error) {
	runCtx, cancel := g.withTimeout(ctx, op)
	defer cancel()

	tool := req.URL.Host
	resp, err := g.httpClient.Do(req.WithContext(runCtx))
	if err != nil {
		gwErr := ClassifyHTTP(op, tool, err)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			gwErr.Detail = "timed out"
			gwErr.Err = timeoutCause(op, err)
		}
		logging.WithContext(ctx, g.logger).Debug("http invocation failed",
			logging.String("operation", string(op)),
			logging.String("host", tool),
			logging.String("kind", gwErr.Kind.String()),
			logging.Error(err),
		)
		return Response{}, gwErr
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &Error{
			Kind:       KindExternalFailure,
			Operation:  op,
			Tool:       tool,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Detail:     fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(body)),
		}
	}
	if readErr != nil {
		return out, &Error{Kind: KindExternalFailure, Operation: op, Tool: tool, Detail: "read response", Err: readErr}
	}
	return out, nil
}

// ClassifyHTTP converts a transport error into a gateway error.
func ClassifyHTTP(op Operation, tool string, err error) *Error {
	gwErr := &Error{Kind: KindExternalFailure, Operation: op, Tool: tool, Err: err}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr):
		gwErr.Kind = KindUnavailable
		gwErr.Detail = "host lookup failed"
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		gwErr.Kind = KindUnavailable
		gwErr.Detail = "network unreachable"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		gwErr.Kind = KindUnavailable
		gwErr.Detail = "dial failed"
	}
	return gwErr
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if text == "" {
		return "(empty body)"
	}
	return truncate(text, 200)
}
