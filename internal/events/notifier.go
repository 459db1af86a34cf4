// Package events publishes build-completed notifications for external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/executor"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Summary is the JSON payload describing one finished build.
type Summary struct {
	BuildID    string    `json:"build_id"`
	Outcome    string    `json:"outcome"`
	Built      int       `json:"built"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// SummaryFromReport condenses an executor report into a notification payload.
func SummaryFromReport(r *executor.Report) Summary {
	return Summary{
		BuildID:    r.BuildID,
		Outcome:    string(r.Outcome),
		Built:      len(r.Built),
		Skipped:    len(r.Skipped),
		Failed:     len(r.Failed),
		DurationMS: r.Duration.Milliseconds(),
		FinishedAt: r.StartedAt.Add(r.Duration),
	}
}

// Notifier delivers build summaries. Implementations must tolerate being
// called from the watch loop after every rebuild.
type Notifier interface {
	BuildCompleted(ctx context.Context, s Summary) error
	Close() error
}

// NoopNotifier discards every notification (default when NATS is not configured).
type NoopNotifier struct{}

func (NoopNotifier) BuildCompleted(context.Context, Summary) error { return nil }
func (NoopNotifier) Close() error                                  { return nil }

// NATSNotifier publishes summaries to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSNotifier connects to NATS and returns a notifier for the subject.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, subject: subject, logger: slog.Default()}, nil
}

// BuildCompleted implements Notifier.
func (n *NATSNotifier) BuildCompleted(_ context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal build summary: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish build summary: %w", err)
	}
	n.logger.Debug("Published build notification",
		logfields.BuildID(s.BuildID),
		slog.String("subject", n.subject))
	return nil
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
