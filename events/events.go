// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vnkhanh/tracer-study/logger"
	"go.uber.org/zap"
)

const (
	ResponseCompleted      = "response.completed"
	QuestionnairePublished = "questionnaire.published"
	QuestionnaireClosed    = "questionnaire.closed"
	PasswordResetRequested = "password_reset.requested"
	PasswordResetCompleted = "password_reset.completed"
)

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(typ string, payload any) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

type (
	ResponseCompletedPayload struct {
		ResponseID      uint      `json:"response_id"`
		QuestionnaireID uint      `json:"questionnaire_id"`
		CompletedAt     time.Time `json:"completed_at"`
	}

	QuestionnaireStatusPayload struct {
		QuestionnaireID uint   `json:"questionnaire_id"`
		Status          string `json:"status"`
	}

	// PasswordResetPayload carries the code to the mail worker; it is the
	// only place the plain code leaves the process.
	PasswordResetPayload struct {
		Email     string    `json:"email"`
		Code      string    `json:"code,omitempty"`
		ExpiresAt time.Time `json:"expires_at,omitempty"`
	}
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	IsHealthy() bool
	Close() error
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type AMQP struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *logger.Logger
}

// NewAMQP opens a channel on conn and declares a durable topic exchange.
func NewAMQP(conn *amqp.Connection, exchange string, log *logger.Logger) (*AMQP, error) {
	if log == nil {
		log = logger.Nop()
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Error("error opening channel", zap.Error(err))
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, channel: ch, exchange: exchange, logger: log}, nil
}

func (p *AMQP) Publish(ctx context.Context, routingKey string, payload any) error {
	event, err := NewEvent(routingKey, payload)
	if err != nil {
		p.logger.Error("error encode payload for publish", zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("error encode event for publish",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         event.Type,
			Body:         body,
			Timestamp:    event.Timestamp,
		},
	)
	if err != nil {
		p.logger.Error("error publishing event",
			zap.String("event_id", event.ID),
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return err
	}

	p.logger.Debug("published event",
		zap.String("event_id", event.ID),
		zap.String("routing_key", routingKey))
	return nil
}

func (p *AMQP) IsHealthy() bool {
	return !p.channel.IsClosed() && (p.conn == nil || !p.conn.IsClosed())
}

func (p *AMQP) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Error("error closing channel", zap.Error(err))
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Log is used when no broker is configured: events are only logged.
type Log struct {
	logger *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Nop()
	}
	return &Log{logger: log}
}

func (l *Log) Publish(_ context.Context, routingKey string, payload any) error {
	if p, ok := payload.(PasswordResetPayload); ok {
		// never log the code itself
		payload = PasswordResetPayload{Email: p.Email, ExpiresAt: p.ExpiresAt}
	}
	l.logger.Info("event (no broker configured)",
		zap.String("routing_key", routingKey),
		zap.Any("payload", payload))
	return nil
}

func (*Log) IsHealthy() bool { return true }
func (*Log) Close() error    { return nil }
