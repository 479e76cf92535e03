package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

// Publisher owns one channel for outbound messages. The concrete publishers
// below choose exchange, routing, and encoding.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, pub amqp.Publishing) error {
	pub.DeliveryMode = amqp.Persistent
	pub.Timestamp = time.Now().UTC()
	return p.channel.PublishWithContext(ctx, exchange, key, false, false, pub)
}

// StatusPublisher broadcasts job status transitions on the topic exchange
// as JSON.
type StatusPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewStatusPublisher(pub *Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub, routingKey: StatusRoutingKey}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg entity.ScanStatusMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode status message: %w", err)
	}
	return sp.pub.publish(ctx, sp.pub.exchange, sp.routingKey, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// DLQPublisher parks messages straight on the dead letter queue via the
// default exchange, tagging the reason for operators. The body passes
// through untouched so the original message can be replayed.
type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx, "", dp.queue, amqp.Publishing{
		ContentType: "application/json",
		Body:        msg,
		Headers: amqp.Table{
			"x-dlq-reason": reason,
		},
	})
}
