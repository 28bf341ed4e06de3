// Package publish delivers compiled manifests to downstream consumers over NATS.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject manifests are published to when none is configured.
const DefaultSubject = "rules.manifest"

// flushTimeout bounds the flush when the caller's context has no deadline.
const flushTimeout = 5 * time.Second

// Message headers set on every published manifest.
const (
	HeaderMsgID  = "Nats-Msg-Id"
	HeaderDigest = "Rulec-Manifest-Digest"
	HeaderFormat = "Rulec-Format"
)

// Publisher sends a serialized manifest somewhere.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

// Message is one serialized manifest plus its routing metadata.
type Message struct {
	Subject string
	RunID   string
	Format  string
	Data    []byte
}

// Digest returns the hex SHA-256 of the payload.
func (m Message) Digest() string {
	sum := sha256.Sum256(m.Data)
	return hex.EncodeToString(sum[:])
}

// natsMsg builds the NATS message with headers. The run ID doubles as the
// JetStream de-duplication ID.
func (m Message) natsMsg() *nats.Msg {
	subject := m.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	msg := nats.NewMsg(subject)
	msg.Data = m.Data
	if m.RunID != "" {
		msg.Header.Set(HeaderMsgID, m.RunID)
	}
	msg.Header.Set(HeaderDigest, m.Digest())
	if m.Format != "" {
		msg.Header.Set(HeaderFormat, m.Format)
	}
	return msg
}

// NATSPublisher publishes manifests on a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials the NATS server at url.
func Connect(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("rulec"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// Publish sends the manifest and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("publisher closed")
	}

	msg := m.natsMsg()
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish manifest to %s: %w", msg.Subject, err)
	}
	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush NATS connection: %w", err)
	}

	p.logger.Info("Published manifest",
		"subject", msg.Subject,
		"run_id", m.RunID,
		"bytes", len(m.Data))
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Drain()
}
