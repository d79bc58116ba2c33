// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Node RPC metrics
	RPCRequestsTotal *prometheus.CounterVec
	RPCCallLatency   *prometheus.HistogramVec
	RPCErrors        *prometheus.CounterVec
	RPCFailures      *prometheus.CounterVec

	// Transaction client metrics
	TxBuilt             prometheus.Counter
	TxBroadcast         prometheus.Counter
	TxOutcomes          *prometheus.CounterVec
	NonceAcquisitions   prometheus.Counter
	ConfirmationLatency prometheus.Histogram
	PendingTransactions prometheus.Gauge

	// Devnet metrics
	BlocksMined     prometheus.Counter
	TxMined         *prometheus.CounterVec
	MempoolSize     prometheus.Gauge
	DevnetChainHead prometheus.Gauge

	// History recorder metrics
	BlocksRecorded    prometheus.Counter
	TransfersRecorded *prometheus.CounterVec
	StorageErrors     *prometheus.CounterVec
	RecorderHeight    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRecord prometheus.Gauge
	UptimeSeconds        prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "evm_token_lab"
	}

	return &Metrics{
		// Node RPC metrics
		RPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eth",
			Name:      "rpc_requests_total",
			Help:      "Total number of JSON-RPC requests by method",
		}, []string{"method"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "eth",
			Name:      "rpc_call_latency_seconds",
			Help:      "Node RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eth",
			Name:      "rpc_errors_total",
			Help:      "Total number of node-reported RPC errors by method",
		}, []string{"method"}),
		RPCFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eth",
			Name:      "rpc_transport_failures_total",
			Help:      "Total number of RPC calls that exhausted transport retries",
		}, []string{"method"}),

		// Transaction client metrics
		TxBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "transactions_built_total",
			Help:      "Total number of transactions built",
		}),
		TxBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "transactions_broadcast_total",
			Help:      "Total number of transactions broadcast",
		}),
		TxOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "transaction_outcomes_total",
			Help:      "Total number of resolved transactions by outcome",
		}, []string{"outcome"}),
		NonceAcquisitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "nonce_acquisitions_total",
			Help:      "Total number of per-account nonce acquisitions",
		}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "confirmation_wait_seconds",
			Help:      "Time from broadcast to a terminal outcome in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PendingTransactions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "txclient",
			Name:      "pending_transactions",
			Help:      "Broadcast transactions not yet resolved",
		}),

		// Devnet metrics
		BlocksMined: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devnet",
			Name:      "blocks_mined_total",
			Help:      "Total number of blocks mined",
		}),
		TxMined: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devnet",
			Name:      "transactions_mined_total",
			Help:      "Total number of transactions mined by receipt status",
		}, []string{"status"}),
		MempoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devnet",
			Name:      "mempool_size",
			Help:      "Transactions waiting in the mempool",
		}),
		DevnetChainHead: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "devnet",
			Name:      "chain_head",
			Help:      "Current devnet block height",
		}),

		// History recorder metrics
		BlocksRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "blocks_recorded_total",
			Help:      "Total number of blocks written to storage",
		}),
		TransfersRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "transfers_recorded_total",
			Help:      "Total number of transfers written to storage by kind",
		}, []string{"kind"}),
		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "storage_errors_total",
			Help:      "Total number of storage write failures by store",
		}, []string{"store"}),
		RecorderHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "recorder_height",
			Help:      "Highest fully recorded block",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRecord: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_record_timestamp",
			Help:      "Unix timestamp of the last successful storage write",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCRequest records one completed JSON-RPC round trip.
func RecordRPCRequest(method string, d time.Duration) {
	DefaultMetrics.RPCRequestsTotal.WithLabelValues(method).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
}

// RecordRPCError records a node-reported RPC error.
func RecordRPCError(method string) {
	DefaultMetrics.RPCErrors.WithLabelValues(method).Inc()
}

// RecordRPCFailure records a call that exhausted transport retries.
func RecordRPCFailure(method string) {
	DefaultMetrics.RPCFailures.WithLabelValues(method).Inc()
}

// RecordTxBuilt increments the built transactions counter.
func RecordTxBuilt() {
	DefaultMetrics.TxBuilt.Inc()
	DefaultMetrics.NonceAcquisitions.Inc()
}

// RecordTxBroadcast increments the broadcast counter and pending gauge.
func RecordTxBroadcast() {
	DefaultMetrics.TxBroadcast.Inc()
	DefaultMetrics.PendingTransactions.Inc()
}

// RecordTxOutcome records a terminal outcome for a broadcast transaction.
func RecordTxOutcome(outcome string, waited time.Duration) {
	DefaultMetrics.TxOutcomes.WithLabelValues(outcome).Inc()
	DefaultMetrics.ConfirmationLatency.Observe(waited.Seconds())
	DefaultMetrics.PendingTransactions.Dec()
}

// RecordBlockMined records a mined devnet block.
func RecordBlockMined(height uint64, statuses []string) {
	DefaultMetrics.BlocksMined.Inc()
	DefaultMetrics.DevnetChainHead.Set(float64(height))
	for _, status := range statuses {
		DefaultMetrics.TxMined.WithLabelValues(status).Inc()
	}
}

// UpdateMempoolSize updates the devnet mempool gauge.
func UpdateMempoolSize(n int) {
	DefaultMetrics.MempoolSize.Set(float64(n))
}

// RecordBlockRecorded records a block written to storage.
func RecordBlockRecorded(height uint64) {
	DefaultMetrics.BlocksRecorded.Inc()
	DefaultMetrics.RecorderHeight.Set(float64(height))
	DefaultMetrics.LastSuccessfulRecord.SetToCurrentTime()
}

// RecordTransferRecorded records a transfer written to storage.
func RecordTransferRecorded(kind string) {
	DefaultMetrics.TransfersRecorded.WithLabelValues(kind).Inc()
}

// RecordStorageError records a storage write failure.
func RecordStorageError(store string) {
	DefaultMetrics.StorageErrors.WithLabelValues(store).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
