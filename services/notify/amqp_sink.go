package notify

import (
	"Quizrace/models/events"
	"Quizrace/models/postgres"
	"Quizrace/utils/logger"
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink puts events on a durable RabbitMQ queue. The payment service
// consumes refund_intent from it.
type AMQPSink struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func DialAMQP(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %v", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening channel: %v", err)
	}
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("error declaring queue %s: %v", queue, err)
	}
	logger.Infof("[AMQP] Publishing round events to queue %s", q.Name)
	return &AMQPSink{conn: conn, ch: ch, queue: q.Name}, nil
}

// Message builds the AMQP message for an event.
func Message(e postgres.RoundEvent) (amqp.Publishing, error) {
	body, err := events.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         e.Type,
		Timestamp:    e.CreatedAt,
		Body:         body,
	}, nil
}

func (s *AMQPSink) Publish(ctx context.Context, evs ...postgres.RoundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range evs {
		msg, err := Message(e)
		if err != nil {
			return err
		}
		if err := s.ch.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
			return fmt.Errorf("error publishing %s: %v", e.Type, err)
		}
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if err := s.ch.Close(); err != nil {
		return err
	}
	return s.conn.Close()
}
