package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/usersvc/internal/domain/repository"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue cola donde se publica la actividad.
const DefaultQueue = "user.activity"

// ActivityEvent payload publicado en la cola.
type ActivityEvent struct {
	ID           string    `json:"id"`
	Actor        string    `json:"actor"`
	ActorRole    string    `json:"actor_role,omitempty"`
	Action       string    `json:"action"`
	Target       string    `json:"target,omitempty"`
	Result       string    `json:"result"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func eventFromRecord(rec repository.ActivityRecord) ActivityEvent {
	return ActivityEvent{
		ID:           rec.ID,
		Actor:        rec.Actor,
		ActorRole:    rec.ActorRole,
		Action:       rec.Action,
		Target:       rec.Target,
		Result:       rec.Result,
		IPAddress:    rec.IPAddress,
		UserAgent:    rec.UserAgent,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
	}
}

// AMQPSink publica cada registro en una cola durable de RabbitMQ.
// La conexión se abre lazy y se reabre si el broker la cerró. Tras un dial
// fallido no se reintenta hasta que pase cooldown.
type AMQPSink struct {
	url         string
	queue       string
	dialTimeout time.Duration
	cooldown    time.Duration

	sem       chan struct{} // lock que respeta ctx
	conn      *amqp.Connection
	ch        *amqp.Channel
	downUntil time.Time
}

// ErrSinkUnavailable el broker falló hace poco; no se intenta otra vez todavía.
var ErrSinkUnavailable = errors.New("amqp: broker unavailable")

const (
	defaultDialTimeout = 2 * time.Second
	defaultCooldown    = 5 * time.Second
)

type AMQPOption func(*AMQPSink)

// WithDialTimeout tope para TCP + handshake AMQP.
func WithDialTimeout(d time.Duration) AMQPOption {
	return func(s *AMQPSink) {
		if d > 0 {
			s.dialTimeout = d
		}
	}
}

// WithCooldown tiempo sin redial después de un fallo de conexión.
func WithCooldown(d time.Duration) AMQPOption {
	return func(s *AMQPSink) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

func NewAMQPSink(url, queue string, opts ...AMQPOption) *AMQPSink {
	if queue == "" {
		queue = DefaultQueue
	}
	s := &AMQPSink{
		url:         url,
		queue:       queue,
		dialTimeout: defaultDialTimeout,
		cooldown:    defaultCooldown,
		sem:         make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AMQPSink) unlock() { <-s.sem }

func (s *AMQPSink) Write(ctx context.Context, rec repository.ActivityRecord) error {
	body, err := json.Marshal(eventFromRecord(rec))
	if err != nil {
		return fmt.Errorf("amqp: marshal: %w", err)
	}

	if err := s.lock(ctx); err != nil {
		return fmt.Errorf("amqp: %w", err)
	}
	defer s.unlock()

	ch, err := s.channelLocked(ctx)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.ID,
		Timestamp:    rec.CreatedAt,
		Type:         rec.Action,
		Body:         body,
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ch.PublishWithContext(pctx, "", s.queue, false, false, pub); err != nil {
		s.resetLocked()
		return fmt.Errorf("amqp: publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() && s.conn != nil && !s.conn.IsClosed() {
		return s.ch, nil
	}
	s.resetLocked()
	if time.Now().Before(s.downUntil) {
		return nil, ErrSinkUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}

	// el deadline de DefaultDial cubre TCP y handshake; no puede pasar el del ctx
	timeout := s.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	conn, err := amqp.DialConfig(s.url, amqp.Config{
		Dial:      amqp.DefaultDial(timeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		s.downUntil = time.Now().Add(s.cooldown)
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		s.downUntil = time.Now().Add(s.cooldown)
		return nil, fmt.Errorf("amqp: channel: %w", err)
	}
	// durable: sobrevive reinicios del broker
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: queue declare: %w", err)
	}
	s.conn, s.ch = conn, ch
	s.downUntil = time.Time{}
	return ch, nil
}

func (s *AMQPSink) resetLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.ch, s.conn = nil, nil
}

// Close libera la conexión.
func (s *AMQPSink) Close() error {
	s.sem <- struct{}{}
	defer s.unlock()
	s.resetLocked()
	return nil
}
