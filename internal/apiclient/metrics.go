package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unifisign_client_requests_total",
		Help: "Количество запросов к API бэкенда по эндпоинту и результату.",
	}, []string{"endpoint", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unifisign_client_request_duration_seconds",
		Help:    "Длительность запросов к API бэкенда.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
