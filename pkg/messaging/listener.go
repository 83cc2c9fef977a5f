package messaging

import (
	"log"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	amqp "github.com/rabbitmq/amqp091-go"
)

func declareBindAndConsume(ch *amqp.Channel, prefix string, topic ChangeTopic) (<-chan amqp.Delivery, error) {
	name := getName(prefix, topic)
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, err
	}
	if err = ch.QueueBind(q.Name, name, name, false, nil); err != nil {
		return nil, err
	}
	return ch.Consume(
		q.Name,
		"",
		false,
		true,
		false,
		false,
		nil,
	)
}

// ListenToTopic decodes every message on topic into V and hands it to fn.
// Messages are acked after fn succeeds. Messages that cannot be decoded or
// processed are logged and dropped without requeue, so one bad message never
// stops the consumer.
func ListenToTopic[V any](ch *amqp.Channel, prefix string, topic ChangeTopic, fn func(V) error) error {
	msgs, err := declareBindAndConsume(ch, prefix, topic)
	if err != nil {
		return err
	}

	go func() {
		defer ch.Close()
		consume(msgs, topic, fn)
	}()
	return nil
}

// consume handles deliveries until msgs is closed.
func consume[V any](msgs <-chan amqp.Delivery, topic ChangeTopic, fn func(V) error) {
	for d := range msgs {
		var data V
		if err := jsoncompat.Unmarshal(d.Body, &data); err != nil {
			log.Printf("unable to decode %s message: %v", topic, err)
			d.Nack(false, false)
			continue
		}
		if err := fn(data); err != nil {
			log.Printf("error processing %s message: %v", topic, err)
			d.Nack(false, false)
			continue
		}
		d.Ack(false)
	}
}
