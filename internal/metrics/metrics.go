package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "medtrack"

type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	responseTimes prometheus.Histogram

	dosesLogged      *prometheus.CounterVec
	actionsRejected  *prometheus.CounterVec
	pointsAwarded    prometheus.Counter
	achievements     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	snapshotFailures *prometheus.CounterVec
	authEvents       *prometheus.CounterVec

	openTrackers      prometheus.Gauge
	activeConnections prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// New builds a Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		responseTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		dosesLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "doses_logged_total", Help: "Dose logs appended by status.",
		}, []string{"status"}),
		actionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "actions_rejected_total", Help: "Tracker actions rejected by reason.",
		}, []string{"reason"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reward_points_total", Help: "Reward points awarded.",
		}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "achievements_unlocked_total", Help: "Achievements unlocked by key.",
		}, []string{"achievement"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notification_events_total", Help: "Dose notification events by kind.",
		}, []string{"kind"}),
		snapshotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshot_save_failures_total", Help: "Failed snapshot saves by collection.",
		}, []string{"collection"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_events_total", Help: "Identity events by kind.",
		}, []string{"kind"}),
		openTrackers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_trackers", Help: "Trackers loaded for signed-in users.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_connections", Help: "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.responseTimes,
		m.dosesLogged,
		m.actionsRejected,
		m.pointsAwarded,
		m.achievements,
		m.notifications,
		m.snapshotFailures,
		m.authEvents,
		m.openTrackers,
		m.activeConnections,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(method string, status int) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.responseTimes.Observe(d.Seconds())
}

func (m *Metrics) RecordDose(status string) {
	m.dosesLogged.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRejected(reason string) {
	m.actionsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordPoints(points int) {
	if points > 0 {
		m.pointsAwarded.Add(float64(points))
	}
}

func (m *Metrics) RecordAchievement(key string) {
	m.achievements.WithLabelValues(key).Inc()
}

func (m *Metrics) RecordNotification(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSnapshotFailure(collection string) {
	m.snapshotFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) RecordAuthEvent(kind string) {
	m.authEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) TrackerOpened() {
	m.openTrackers.Inc()
}

func (m *Metrics) TrackerClosed() {
	m.openTrackers.Dec()
}

func (m *Metrics) IncrementActiveConnections() {
	m.activeConnections.Inc()
}

func (m *Metrics) DecrementActiveConnections() {
	m.activeConnections.Dec()
}

type Snapshot struct {
	Uptime            time.Duration    `json:"uptime"`
	RequestsTotal     int64            `json:"requests_total"`
	DosesLogged       map[string]int64 `json:"doses_logged"`
	ActionsRejected   map[string]int64 `json:"actions_rejected"`
	PointsAwarded     int64            `json:"points_awarded"`
	Achievements      map[string]int64 `json:"achievements"`
	Notifications     map[string]int64 `json:"notifications"`
	SnapshotFailures  map[string]int64 `json:"snapshot_failures"`
	OpenTrackers      int64            `json:"open_trackers"`
	ActiveConnections int64            `json:"active_connections"`
}

// Snapshot summarizes the domain counters as plain numbers.
func (m *Metrics) Snapshot() *Snapshot {
	s := &Snapshot{
		Uptime:           time.Since(m.startTime),
		DosesLogged:      make(map[string]int64),
		ActionsRejected:  make(map[string]int64),
		Achievements:     make(map[string]int64),
		Notifications:    make(map[string]int64),
		SnapshotFailures: make(map[string]int64),
	}

	families, err := m.registry.Gather()
	if err != nil {
		return s
	}
	for _, fam := range families {
		switch fam.GetName() {
		case namespace + "_http_requests_total":
			for _, metric := range fam.GetMetric() {
				s.RequestsTotal += int64(metric.GetCounter().GetValue())
			}
		case namespace + "_doses_logged_total":
			collect(s.DosesLogged, fam, "status")
		case namespace + "_actions_rejected_total":
			collect(s.ActionsRejected, fam, "reason")
		case namespace + "_achievements_unlocked_total":
			collect(s.Achievements, fam, "achievement")
		case namespace + "_notification_events_total":
			collect(s.Notifications, fam, "kind")
		case namespace + "_snapshot_save_failures_total":
			collect(s.SnapshotFailures, fam, "collection")
		case namespace + "_reward_points_total":
			for _, metric := range fam.GetMetric() {
				s.PointsAwarded += int64(metric.GetCounter().GetValue())
			}
		case namespace + "_open_trackers":
			for _, metric := range fam.GetMetric() {
				s.OpenTrackers = int64(metric.GetGauge().GetValue())
			}
		case namespace + "_active_connections":
			for _, metric := range fam.GetMetric() {
				s.ActiveConnections = int64(metric.GetGauge().GetValue())
			}
		}
	}
	return s
}

func collect(into map[string]int64, fam *dto.MetricFamily, label string) {
	for _, metric := range fam.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label {
				into[pair.GetValue()] += int64(metric.GetCounter().GetValue())
			}
		}
	}
}

func RecordRequest(method string, status int) {
	Default().RecordRequest(method, status)
}

func RecordResponseTime(d time.Duration) {
	Default().RecordResponseTime(d)
}

func GetSnapshot() *Snapshot {
	return Default().Snapshot()
}

func Handler() http.Handler {
	return Default().Handler()
}
