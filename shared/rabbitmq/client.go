package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the client uses. Tests swap in a fake.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitmqClient struct {
	//conn is a tcp connection to rabbitmq server, nil when built around an injected channel
	conn *amqp.Connection
	chn  Channel
}

func NewClient(url string) (*RabbitmqClient, error) {
	//Dial the server
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	//Open a channel. This open a logical session inside the connection.
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &RabbitmqClient{conn: conn, chn: chn}, nil
}

// NewClientWithChannel wraps an existing channel.
func NewClientWithChannel(chn Channel) *RabbitmqClient {
	return &RabbitmqClient{chn: chn}
}

// Close cleans up
func (r *RabbitmqClient) Close() error {
	if err := r.chn.Close(); err != nil {
		return err
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// CreateQueue prepares a durable queue to hold messages
func (r *RabbitmqClient) CreateQueue(queueName string) error {
	_, err := r.chn.QueueDeclare(
		queueName, //name of queue
		true,      //durable
		false,     //delete when unused
		false,     //exclusive
		false,     //no-wait
		nil,       //arguments
	)
	return err
}

// Publish sends a message to a specific queue through the default exchange.
func (r *RabbitmqClient) Publish(ctx context.Context, queueName string, body []byte) error {
	return r.chn.PublishWithContext(
		ctx,
		"",        //exchange
		queueName, //routing key (queue name)
		false,     //mandatory
		false,     //immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Notifier publishes JSON notifications to one queue. The email collaborator consumes them.
type Notifier struct {
	client *RabbitmqClient
	queue  string
}

// NewNotifier declares the queue and returns a notifier bound to it.
func NewNotifier(client *RabbitmqClient, queue string) (*Notifier, error) {
	if err := client.CreateQueue(queue); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &Notifier{client: client, queue: queue}, nil
}

// Notify marshals the payload and publishes it.
func (n *Notifier) Notify(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.client.Publish(ctx, n.queue, body)
}
