package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// statusError is a non-2xx reply from the completion endpoint.
type statusError struct {
	code  int
	body  string
	after time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, e.body)
}

// retryAfter reports whether the status is worth another attempt and the
// server-requested delay, if any.
func (e *statusError) retryAfter() (time.Duration, bool) {
	switch {
	case e.code == http.StatusRequestTimeout, e.code == http.StatusTooManyRequests:
	case e.code >= http.StatusInternalServerError:
	default:
		return 0, false
	}
	return e.after, true
}

// emptyReplyError is a 2xx reply without any usable text. Providers emit these
// under load, so they are always retried.
type emptyReplyError struct {
	op           string
	finishReason string
	refusal      string
	snippet      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.op, e.finishReason, e.refusal, e.snippet)
}

func (e *emptyReplyError) retryAfter() (time.Duration, bool) { return 0, true }

func newStatusError(resp *http.Response, body []byte) *statusError {
	after, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body)), after: after}
}
