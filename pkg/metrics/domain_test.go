package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestDomainMetricsCountsWalletMovements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)

	m.WalletMovement("DEBIT", "ORDER_PAYMENT", 6000)
	m.WalletMovement("DEBIT", "ORDER_PAYMENT", 1500)
	m.WalletMovement("CREDIT", "SETTLEMENT", 6000)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	labels := map[string]string{"type": "DEBIT", "transaction_type": "ORDER_PAYMENT"}
	if got := counterWithLabels(t, mfs, "farmlink_wallet_transactions_total", labels); got != 2 {
		t.Fatalf("expected 2 debits, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "farmlink_wallet_amount_cents_total", labels); got != 7500 {
		t.Fatalf("expected 7500 cents, got %f", got)
	}
}

func TestDomainMetricsOrdersAndOutbox(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDomainMetrics(reg)

	m.OrderTransition("PENDING", "WALLET")
	m.OrderTransition("ACCEPTED", "WALLET")
	m.OutboxDelivery("order_created", "published")
	m.OutboxDelivery("", "failed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterWithLabels(t, mfs, "farmlink_orders_transitions_total", map[string]string{"status": "ACCEPTED", "payment_method": "WALLET"}); got != 1 {
		t.Fatalf("expected 1 accepted order, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "farmlink_outbox_events_total", map[string]string{"event_type": "unknown", "outcome": "failed"}); got != 1 {
		t.Fatalf("expected unknown label for blank event type, got %f", got)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/orders", 201, 40*time.Millisecond)
	m.Observe("POST", "/api/orders", 201, 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterWithLabels(t, mfs, "farmlink_http_requests_total", map[string]string{"method": "POST", "route": "/api/orders", "code": "201"}); got != 2 {
		t.Fatalf("expected 2 requests, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "farmlink_http_request_duration_seconds", "route", "/api/orders"); err != nil || got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f (%v)", got, err)
	}
}

func TestNilRegistererYieldsNoop(t *testing.T) {
	NewDomainMetrics(nil).WalletMovement("CREDIT", "TOPUP", 100)
	NewHTTPMetrics(nil).Observe("GET", "/health/live", 200, time.Millisecond)
	var m *DomainMetrics
	m.OrderTransition("PENDING", "COD")
}

func counterWithLabels(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing labels %v", name, labels)
	return 0
}

func mustGather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	return mfs
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
