package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matst80/slask-discovery/pkg/api"
	"github.com/matst80/slask-discovery/pkg/cache"
	"github.com/matst80/slask-discovery/pkg/common"
	"github.com/matst80/slask-discovery/pkg/facet"
	"github.com/matst80/slask-discovery/pkg/server"
	"github.com/matst80/slask-discovery/pkg/tracking"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var listenAddress = flag.String("listen", ":8080", "address to listen on")
var searchApiUrl = os.Getenv("SEARCH_API_URL")
var redisUrl = os.Getenv("REDIS_URL")
var redisPassword = os.Getenv("REDIS_PASSWORD")
var rabbitUrl = os.Getenv("RABBIT_URL")
var trackingContext = "portal"

var facets = []string{
	"@type",
	"includedInDataCatalog.name",
	"date",
	"species.name",
	"healthCondition.name",
	"infectiousAgent.name",
	"measurementTechnique.name",
	"funding.funder.name",
}

var facetSize = facet.DefaultFacetSize
var requestTimeout = facet.DefaultRequestTimeout

func init() {
	if searchApiUrl == "" {
		searchApiUrl = "https://api.data.niaid.nih.gov/v1/query"
	}
	if c, ok := os.LookupEnv("TRACKING_CONTEXT"); ok {
		trackingContext = c
	}
	if f, ok := os.LookupEnv("FACETS"); ok && f != "" {
		facets = strings.Split(f, ",")
	}
	if s, ok := os.LookupEnv("FACET_SIZE"); ok {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			facetSize = n
		} else {
			log.Printf("invalid FACET_SIZE %q, using %d", s, facetSize)
		}
	}
	if s, ok := os.LookupEnv("REQUEST_TIMEOUT"); ok {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			requestTimeout = d
		} else {
			log.Printf("invalid REQUEST_TIMEOUT %q, using %s", s, requestTimeout)
		}
	}
}

func main() {
	flag.Parse()

	var store cache.Store = cache.NewMemory()
	if redisUrl != "" {
		rc := cache.NewRedis(redisUrl, redisPassword, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Printf("redis not reachable, using memory cache: %v", err)
		} else {
			store = rc
			defer rc.Close()
			log.Printf("Using redis cache at %s", redisUrl)
		}
		cancel()
	}

	fetcher := facet.NewFetcher(api.NewClient(searchApiUrl), store)
	fetcher.RequestTimeout = requestTimeout
	ws := server.NewWebServer(fetcher, facets...)
	ws.FacetSize = facetSize

	hooks := []common.ShutdownHook{}
	if rabbitUrl != "" {
		trk, err := tracking.NewRabbitTracking(rabbitUrl, trackingContext)
		if err != nil {
			log.Printf("Failed to connect to rabbitmq for tracking: %v", err)
		} else {
			ws.Tracking = trk
			hooks = append(hooks, trk.Close)
		}
	}

	mux := ws.ClientHandler()
	mux.Handle("/metrics", promhttp.Handler())

	cfg := common.LoadTimeoutConfig(common.TimeoutConfig{
		ReadHeader: 5 * time.Second,
		Read:       15 * time.Second,
		Write:      30 * time.Second,
		Idle:       60 * time.Second,
		Shutdown:   15 * time.Second,
		Hook:       5 * time.Second,
	})
	srv := common.NewServerWithTimeouts(&http.Server{Addr: *listenAddress, Handler: mux}, cfg)

	common.RunServerWithShutdown(srv, "portal server", cfg.Shutdown, cfg.Hook, hooks...)
}
