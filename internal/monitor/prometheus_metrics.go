package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

func PrometheusMetrics() map[MetricTag]prometheus.Collector {
	metrics := make(map[MetricTag]prometheus.Collector)

	for tag, summaryVec := range SummaryVecMetrics {
		metrics[tag] = summaryVec
	}

	for tag, counter := range CounterMetrics {
		metrics[tag] = counter
	}

	for tag, histogramVec := range HistogramVecMetrics {
		metrics[tag] = histogramVec
	}

	for tag, counterVec := range CounterVecMetrics {
		metrics[tag] = counterVec
	}

	return metrics
}

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "swapwatch", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
	SwapFanoutDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "swapwatch", Subsystem: "ingest", Name: string(SwapFanoutDurationTag),
		Help: "Durations of the per-swap room fan-out",
	},
		WebhookDeliveryLabelNames,
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	ReplayBlockedCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "ingest", Name: string(ReplayBlockedCounterTag),
		Help: "A counter of webhook deliveries dropped as replays",
	}),
}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{
	RoomsNotifiedHistogramTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "swapwatch", Subsystem: "ingest", Name: string(RoomsNotifiedHistogramTag),
		Help:    "A histogram of how many rooms each swap reached",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	},
		[]string{},
	),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	WebhookDeliveriesCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "ingest", Name: string(WebhookDeliveriesCounterTag),
		Help: "A counter of webhook deliveries by outcome",
	},
		WebhookDeliveryLabelNames,
	),
	RoomActivationsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "rooms", Name: string(RoomActivationsCounterTag),
		Help: "A counter of room actor activations",
	},
		RoomLifecycleLabelNames,
	),
	RoomDestructionsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "rooms", Name: string(RoomDestructionsCounterTag),
		Help: "A counter of room destructions",
	},
		RoomLifecycleLabelNames,
	),
	PushNotificationsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "push", Name: string(PushNotificationsCounterTag),
		Help: "A counter of push notification attempts",
	},
		WebhookDeliveryLabelNames,
	),
	FilterSyncsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapwatch", Subsystem: "upstream", Name: string(FilterSyncsCounterTag),
		Help: "A counter of upstream filter sync attempts",
	},
		WebhookDeliveryLabelNames,
	),
}
