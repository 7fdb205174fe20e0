// Package metrics 把总线与组件的回调转为 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boatsync/errors"
	"boatsync/messaging"
	"boatsync/widget"
)

const namespace = "boatsync"

var (
	_ messaging.Observer = (*Recorder)(nil)
	_ widget.Observer    = (*Recorder)(nil)
)

// Recorder 同时实现 messaging.Observer 与 widget.Observer
type Recorder struct {
	registry *prometheus.Registry

	published   *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	relayFailed *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	submits     *prometheus.CounterVec
}

func newCounterVec(component, name, help string, labelNames ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: component,
		Name:      name,
		Help:      help,
	}, labelNames)
}

// NewRecorder 创建指标并注册到独立的 Registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry:    prometheus.NewRegistry(),
		published:   newCounterVec("bus", "messages_published_total", "Messages accepted by Publish.", "channel"),
		delivered:   newCounterVec("bus", "deliveries_total", "Listener invocations.", "channel"),
		rejected:    newCounterVec("bus", "messages_rejected_total", "Messages rejected for a missing entityId.", "channel"),
		relayFailed: newCounterVec("bus", "relay_failures_total", "Envelopes the relay failed to forward.", "channel"),
		fetches:     newCounterVec("widget", "fetches_total", "Completed widget fetches by result (ok or error code).", "widget", "result"),
		submits:     newCounterVec("widget", "submits_total", "Completed draft submissions by result (ok or error code).", "result"),
	}
	r.registry.MustRegister(r.published, r.delivered, r.rejected, r.relayFailed, r.fetches, r.submits)
	return r
}

// Registry 返回底层 Registry，供额外注册使用
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler 暴露 /metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) MessagePublished(ch messaging.Channel) {
	r.published.WithLabelValues(string(ch)).Inc()
}

func (r *Recorder) MessageDelivered(ch messaging.Channel, listeners int) {
	r.delivered.WithLabelValues(string(ch)).Add(float64(listeners))
}

func (r *Recorder) MessageRejected(ch messaging.Channel) {
	r.rejected.WithLabelValues(string(ch)).Inc()
}

func (r *Recorder) RelayFailed(ch messaging.Channel) {
	r.relayFailed.WithLabelValues(string(ch)).Inc()
}

func (r *Recorder) FetchCompleted(name string, err error) {
	r.fetches.WithLabelValues(name, result(err)).Inc()
}

func (r *Recorder) SubmitCompleted(err error) {
	r.submits.WithLabelValues(result(err)).Inc()
}

// result 成功为 ok，失败为错误码
func result(err error) string {
	if err != nil {
		return string(errors.GetErrorCode(err))
	}
	return "ok"
}
