package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders committed",
	})

	OrdersDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_duplicate_total",
		Help: "Total number of order requests answered from an existing order number",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of failed order commits",
	}, []string{"reason"})

	OrderItemsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_items_skipped_total",
		Help: "Total number of basket entries left out of an order for lack of stock",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_paid_total",
		Help: "Total number of orders whose payment was confirmed",
	})

	OrderCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_commit_latency_seconds",
		Help:    "Latency of the order commit transaction",
		Buckets: prometheus.DefBuckets,
	})

	ReportRowsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_report_rows_created_total",
		Help: "Total number of report rows created",
	}, []string{"report"})

	ReportRowsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_report_rows_updated_total",
		Help: "Total number of report rows recomputed with changed values",
	}, []string{"report"})

	BackfillDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_report_backfill_duration_seconds",
		Help:    "Duration of report backfill runs",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"report"})

	BasketOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_basket_operations_total",
		Help: "Total number of basket operations",
	}, []string{"op", "result"})

	InventoryMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_inventory_movements_total",
		Help: "Total number of recorded inventory movements",
	}, []string{"type"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_consumed_total",
		Help: "Total number of consumed Kafka events",
	}, []string{"type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
