package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "queryquest", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"method", "status"})
	Registrations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "queryquest", Name: "registrations_total", Help: "Accounts created via self-service registration",
	})
	ChallengeSolves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "queryquest", Name: "challenge_solves_total", Help: "Correct challenge submissions",
	})
	ChatFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "queryquest", Name: "chat_fallbacks_total", Help: "Chat replies served from the static fallback",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "queryquest", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, Registrations, ChallengeSolves, ChatFallbacks, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
