// Package audit records tool dispatch attempts as structured events.
// Recording is strictly best-effort: a sink failure never affects the
// caller-visible result of the dispatch it describes.
package audit

import "time"

// Attempt captures one finalized dispatch attempt, success or failure.
type Attempt struct {
	Tool        string        `json:"tool"`
	Service     string        `json:"service"`
	Method      string        `json:"method"`
	TargetURL   string        `json:"target_url"`
	UserAgent   string        `json:"user_agent"`
	SessionID   string        `json:"session_id"`
	StatusCode  int           `json:"status_code"`
	Result      string        `json:"result"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Elapsed     time.Duration `json:"elapsed_ms"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Sink receives dispatch attempts. Implementations must not block the
// dispatch path and must swallow their own failures.
type Sink interface {
	Record(attempt Attempt)
}

// Fanout forwards each attempt to every configured sink.
type Fanout []Sink

// Record implements Sink.
func (f Fanout) Record(attempt Attempt) {
	for _, sink := range f {
		if sink != nil {
			sink.Record(attempt)
		}
	}
}
