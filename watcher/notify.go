package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"go_trial/ordertaking/models"
)

// NewOrderEvent is the payload published for each new order.
type NewOrderEvent struct {
	OrderID      string             `json:"orderId"`
	CustomerName string             `json:"customerName"`
	PaymentType  models.PaymentType `json:"paymentType"`
	Seating      *string            `json:"seating,omitempty"`
	Subtotal     float64            `json:"subtotal"`
	TotalItems   int                `json:"totalItems"`
	CreatedAt    time.Time          `json:"createdAt"`
	DetectedAt   time.Time          `json:"detectedAt"`
}

func newEvent(o models.Order) NewOrderEvent {
	return NewOrderEvent{
		OrderID:      o.ID,
		CustomerName: o.CustomerName,
		PaymentType:  o.PaymentType,
		Seating:      o.Seating,
		Subtotal:     o.Subtotal,
		TotalItems:   o.TotalItems(),
		CreatedAt:    o.CreatedAt,
		DetectedAt:   time.Now().UTC(),
	}
}

// ConsoleNotifier rings the terminal bell and prints a highlighted summary line.
type ConsoleNotifier struct {
	Out  io.Writer
	Bell bool
}

func (n *ConsoleNotifier) NotifyNewOrder(_ context.Context, o models.Order) error {
	var b strings.Builder
	if n.Bell {
		b.WriteString("\a")
	}
	b.WriteString(color.New(color.FgBlack, color.BgYellow, color.Bold).Sprint(" NEW ORDER "))
	fmt.Fprintf(&b, " %s  %s  %d item(s)  $%.2f", o.CustomerName, o.PaymentType, o.TotalItems(), o.Subtotal)
	if o.Seating != nil {
		fmt.Fprintf(&b, "  seat %s", *o.Seating)
	}
	b.WriteString("\n")
	_, err := io.WriteString(n.Out, b.String())
	return err
}

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaNotifier struct {
	Writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func (n *KafkaNotifier) NotifyNewOrder(ctx context.Context, o models.Order) error {
	body, err := json.Marshal(newEvent(o))
	if err != nil {
		return err
	}
	return n.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(o.ID), Value: body})
}

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes to a topic exchange with routing key order.new. When Acks is set the
// publish waits for the broker's confirmation of that message's delivery tag; confirms left over
// from earlier publishes that timed out are skipped.
type AMQPNotifier struct {
	Channel  Publisher
	Exchange string
	Acks     <-chan amqp.Confirmation
	Timeout  time.Duration

	mu   sync.Mutex
	sent uint64
}

// sequencer is implemented by *amqp.Channel in confirm mode.
type sequencer interface {
	GetNextPublishSeqNo() uint64
}

const amqpRoutingKey = "order.new"

func (n *AMQPNotifier) NotifyNewOrder(ctx context.Context, o models.Order) error {
	body, err := json.Marshal(newEvent(o))
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Body:          body,
		MessageId:     o.ID,
		CorrelationId: o.ID,
		Timestamp:     time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	tag := n.sent + 1
	if seq, ok := n.Channel.(sequencer); ok {
		tag = seq.GetNextPublishSeqNo()
	}
	if err := n.Channel.PublishWithContext(ctx, n.Exchange, amqpRoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish order %s: %w", o.ID, err)
	}
	n.sent = tag
	if n.Acks == nil {
		return nil
	}
	return n.waitConfirm(ctx, tag, o.ID)
}

func (n *AMQPNotifier) waitConfirm(ctx context.Context, tag uint64, orderID string) error {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-n.Acks:
			if !ok {
				return fmt.Errorf("confirm channel closed")
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if confirm.DeliveryTag > tag {
				return fmt.Errorf("confirm for order %s missed, broker is at tag %d", orderID, confirm.DeliveryTag)
			}
			if !confirm.Ack {
				return fmt.Errorf("broker nacked order %s", orderID)
			}
			return nil
		case <-timer.C:
			return fmt.Errorf("timed out waiting for confirm of order %s", orderID)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AMQPConn owns the connection and confirm-mode channel behind an AMQPNotifier.
type AMQPConn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	acks <-chan amqp.Confirmation
}

// confirmBuffer holds late confirms so the connection's reader never blocks on them.
const confirmBuffer = 64

// DialAMQP connects, declares the topic exchange and switches the channel into confirm mode.
func DialAMQP(url, exchange string) (*AMQPConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	return &AMQPConn{conn: conn, ch: ch, acks: acks}, nil
}

func (c *AMQPConn) Notifier(exchange string) *AMQPNotifier {
	return &AMQPNotifier{Channel: c.ch, Exchange: exchange, Acks: c.acks}
}

func (c *AMQPConn) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
