// Package nats carries outbound notifications from the API to the mail
// worker over a NATS queue group.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

const (
	workerQueueGroup = "notification-workers"

	headerNotificationID = "Notification-Id"
	headerContentType    = "Content-Type"
	contentTypeJSON      = "application/json"
)

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	retry := true
	if o.RetryOnFailedConnect != nil {
		retry = *o.RetryOnFailedConnect
	}
	return []nats.Option{
		nats.Name("doc-triage"),
		nats.Timeout(positiveOr(o.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(positiveOr(o.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(positiveOr(o.MaxReconnects, 60)),
		nats.RetryOnFailedConnect(retry),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishNotification enqueues a message for the notification worker.
func (q *Queue) PublishNotification(ctx context.Context, n domain.Notification) error {
	msg, err := encodeNotification(q.subject, n)
	if err != nil {
		return err
	}
	call := func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.MarkTemporary("nats publish", err, connectionErrors)
	}
	return nil
}

// Send implements ports.Notifier by publishing to the worker queue.
func (q *Queue) Send(ctx context.Context, recipient, subject, body string) error {
	return q.PublishNotification(ctx, domain.Notification{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
}

// SubscribeNotifications blocks until ctx is done, then drains the
// subscription. Malformed messages are logged and dropped.
func (q *Queue) SubscribeNotifications(ctx context.Context, handler func(context.Context, domain.Notification) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		n, err := decodeNotification(msg)
		if err != nil {
			slog.Warn("notification_decode_failed", "notification_id", msg.Header.Get(headerNotificationID), "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, n); err != nil {
			slog.Error("notification_handler_failed",
				"notification_id", msg.Header.Get(headerNotificationID),
				"recipient", n.Recipient,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeNotification(subject string, n domain.Notification) (*nats.Msg, error) {
	if strings.TrimSpace(n.Recipient) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode notification", errors.New("recipient is required"))
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(headerContentType, contentTypeJSON)
	msg.Header.Set(headerNotificationID, uuid.NewString())
	return msg, nil
}

func decodeNotification(msg *nats.Msg) (domain.Notification, error) {
	if ct := msg.Header.Get(headerContentType); ct != "" && ct != contentTypeJSON {
		return domain.Notification{}, fmt.Errorf("unsupported content type %q", ct)
	}
	var n domain.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		return domain.Notification{}, fmt.Errorf("unmarshal notification: %w", err)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return domain.Notification{}, errors.New("notification without recipient")
	}
	return n, nil
}
