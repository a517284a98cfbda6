package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "precog_panel_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	authAttempts *prometheus.CounterVec

	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	sinkErrors       *prometheus.CounterVec

	reviewActions *prometheus.CounterVec

	pushClients prometheus.Gauge
	devices     prometheus.Gauge
)

// Init registers panel metrics. A nil registerer means the default one.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}

		apiRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "api_requests_total",
				Help: "PRECOG API requests by operation and result",
			},
			[]string{"op", "result"},
		)
		apiLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "api_latency_seconds",
				Help:    "PRECOG API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		)
		authAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "auth_attempts_total",
				Help: "HMAC key requests by result",
			},
			[]string{"result"},
		)
		alertsEmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_emitted_total",
				Help: "Alerts emitted by kind",
			},
			[]string{"kind"},
		)
		alertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alerts skipped by deduplication by kind",
			},
			[]string{"kind"},
		)
		sinkErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_errors_total",
				Help: "Alert delivery failures by sink",
			},
			[]string{"sink"},
		)
		reviewActions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "review_actions_total",
				Help: "Issue review writes by action and result",
			},
			[]string{"action", "result"},
		)
		pushClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "push_clients",
			Help: "Connected SSE and WebSocket clients",
		})
		devices = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "devices",
			Help: "Devices in the latest snapshot",
		})

		reg.MustRegister(
			apiRequests,
			apiLatency,
			authAttempts,
			alertsEmitted,
			alertsSuppressed,
			sinkErrors,
			reviewActions,
			pushClients,
			devices,
		)
	})
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveAPI records a PRECOG API call.
func ObserveAPI(op string, err error, duration time.Duration) {
	if apiRequests != nil {
		apiRequests.WithLabelValues(op, result(err)).Inc()
	}
	if apiLatency != nil {
		apiLatency.WithLabelValues(op).Observe(duration.Seconds())
	}
}

// IncAuth counts an HMAC key request.
func IncAuth(err error) {
	if authAttempts != nil {
		authAttempts.WithLabelValues(result(err)).Inc()
	}
}

// IncAlert counts an emitted alert.
func IncAlert(kind string) {
	if alertsEmitted != nil {
		alertsEmitted.WithLabelValues(kind).Inc()
	}
}

// IncSuppressed counts an alert skipped by deduplication.
func IncSuppressed(kind string) {
	if alertsSuppressed != nil {
		alertsSuppressed.WithLabelValues(kind).Inc()
	}
}

// IncSinkError counts a failed alert delivery.
func IncSinkError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	if sinkErrors != nil {
		sinkErrors.WithLabelValues(sink).Inc()
	}
}

// IncReview counts a review write.
func IncReview(action string, err error) {
	if reviewActions != nil {
		reviewActions.WithLabelValues(action, result(err)).Inc()
	}
}

// SetPushClients sets the connected push client count.
func SetPushClients(n int) {
	if pushClients != nil {
		pushClients.Set(float64(n))
	}
}

// SetDevices sets the device snapshot size.
func SetDevices(n int) {
	if devices != nil {
		devices.Set(float64(n))
	}
}
