package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 采集与报警流水线指标
// 方法对 nil 接收者安全，测试中可直接传 nil
type Metrics struct {
	readingsIngested   prometheus.Counter
	validationFailures prometheus.Counter
	storeFailures      prometheus.Counter
	alertsFired        prometheus.Counter
	alertsRecovered    prometheus.Counter
	dispatchFailures   prometheus.Counter
}

// NewMetrics 创建并注册指标
func NewMetrics() *Metrics {
	m := &Metrics{
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Total telemetry readings accepted into the rolling cache.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total inbound readings rejected by validation.",
		}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "durable_store_failures_total",
			Help: "Total failed durable store writes (reading stays cached).",
		}),
		alertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alerts_fired_total",
			Help: "Total new-alert transitions.",
		}),
		alertsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alerts_recovered_total",
			Help: "Total recovered transitions.",
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_failures_total",
			Help: "Total alert dispatches where no push notification succeeded.",
		}),
	}

	prometheus.MustRegister(
		m.readingsIngested,
		m.validationFailures,
		m.storeFailures,
		m.alertsFired,
		m.alertsRecovered,
		m.dispatchFailures,
	)

	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ReadingIngested() {
	if m == nil {
		return
	}
	m.readingsIngested.Inc()
}

func (m *Metrics) ValidationFailure() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

func (m *Metrics) StoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}

func (m *Metrics) AlertFired() {
	if m == nil {
		return
	}
	m.alertsFired.Inc()
}

func (m *Metrics) AlertRecovered() {
	if m == nil {
		return
	}
	m.alertsRecovered.Inc()
}

func (m *Metrics) DispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}
