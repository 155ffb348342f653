package clinicAuth

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/clinicAuth/transport"
)

func (c *Client) metricInc(id MetricID) {
	if c == nil {
		return
	}
	c.metrics.Inc(id)
}

// MetricsSnapshot returns a point-in-time copy of the client's counters and
// histograms. It is empty when metrics are disabled.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return c.metrics.Snapshot()
}

// AuditDropped returns how many audit events the dispatcher dropped.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// requestObserver feeds transport telemetry into the client's metrics and
// audit stream.
type requestObserver struct {
	client *Client
}

var _ transport.Observer = requestObserver{}

func (o requestObserver) ObserveRequest(_ *http.Request, status int, d time.Duration, err error) {
	m := o.client.metrics
	m.Inc(MetricRequestTotal)
	if err != nil || status >= http.StatusInternalServerError {
		m.Inc(MetricRequestFailure)
	}
	m.Observe(MetricRequestLatency, d)
}

func (o requestObserver) ObserveUnauthorized(req *http.Request, hadSession bool) {
	if !hadSession {
		return
	}
	o.client.metricInc(MetricSessionInvalidated)

	ctx := context.Background()
	if req != nil {
		ctx = context.WithoutCancel(req.Context())
	}
	o.client.emitAudit(ctx, auditEventSessionInvalidated, true, "", "", "", nil, func() map[string]string {
		if req == nil || req.URL == nil {
			return nil
		}
		return map[string]string{"path": req.URL.Path}
	})
}
