package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/matst80/slask-discovery/pkg/common"
	"github.com/matst80/slask-discovery/pkg/messaging"
	"github.com/matst80/slask-discovery/pkg/tracking"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
)

var listenAddress = flag.String("listen", ":8081", "address for the metrics endpoint")
var rabbitUrl = os.Getenv("RABBIT_URL")

func main() {
	flag.Parse()
	if rabbitUrl == "" {
		log.Fatalf("No rabbit url provided")
	}
	conn, err := amqp.DialConfig(rabbitUrl, amqp.Config{
		Properties: amqp.NewConnectionProperties(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("Failed to open a channel: %v", err)
	}
	if err = messaging.DefineTopic(ch, tracking.Prefix, messaging.SearchTracked); err != nil {
		log.Fatalf("Failed to declare tracking topic: %v", err)
	}
	usage := newUsage()
	if err = messaging.ListenToTopic(ch, tracking.Prefix, messaging.SearchTracked, usage.HandleEvents); err != nil {
		log.Fatalf("Failed to listen to tracking topic: %v", err)
	}
	log.Printf("Listening for search events")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	cfg := common.LoadTimeoutConfig(common.TimeoutConfig{
		ReadHeader: 5 * time.Second,
		Read:       15 * time.Second,
		Write:      30 * time.Second,
		Idle:       60 * time.Second,
		Shutdown:   10 * time.Second,
		Hook:       5 * time.Second,
	})
	srv := common.NewServerWithTimeouts(&http.Server{Addr: *listenAddress, Handler: mux}, cfg)
	common.RunServerWithShutdown(srv, "searchlog", cfg.Shutdown, cfg.Hook)
}
