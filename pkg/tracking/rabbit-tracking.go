package tracking

import (
	"context"
	"log"
	"net/http"

	"github.com/matst80/slask-discovery/pkg/common"
	"github.com/matst80/slask-discovery/pkg/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Prefix    = "discovery"
	batchSize = 50
)

// RabbitTracking publishes events in batches to the tracking topic.
type RabbitTracking struct {
	context    string
	connection *amqp.Connection
	queue      *common.QueueHandler[any]
}

func NewRabbitTracking(url, trackingContext string) (*RabbitTracking, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err = messaging.DefineTopic(ch, Prefix, messaging.SearchTracked); err != nil {
		conn.Close()
		return nil, err
	}
	t := &RabbitTracking{
		context:    trackingContext,
		connection: conn,
	}
	t.queue = common.NewQueueHandler[any](t.send, batchSize)
	return t, nil
}

func (t *RabbitTracking) send(events []any) {
	if err := messaging.SendChange(t.connection, Prefix, messaging.SearchTracked, events); err != nil {
		log.Printf("error sending %d tracking events: %v", len(events), err)
	}
}

// Close flushes queued events and closes the connection.
func (t *RabbitTracking) Close(ctx context.Context) error {
	if err := t.queue.Close(ctx); err != nil {
		log.Printf("tracking queue not flushed: %v", err)
	}
	return t.connection.Close()
}

func (t *RabbitTracking) TrackSession(sessionId int, r *http.Request) {
	t.queue.Add(&Session{
		BaseEvent:    newBaseEvent(SessionEvent, sessionId, t.context),
		Language:     r.Header.Get("Accept-Language"),
		UserAgent:    r.UserAgent(),
		Ip:           clientIp(r),
		PragmaHeader: r.Header.Get("Pragma"),
	})
}

func (t *RabbitTracking) TrackSearch(sessionId int, search SearchEvent, r *http.Request) {
	t.queue.Add(&SearchEventData{
		BaseEvent:   newBaseEvent(SearchEvents, sessionId, t.context),
		SearchEvent: search,
		Referer:     r.Header.Get("Referer"),
	})
}
