package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/dccl-acomms/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters/gauges for the gateway.
var (
	EncodeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dccl_encode_total",
		Help: "Total records encoded by the message codec.",
	})
	DecodeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dccl_decode_total",
		Help: "Total records decoded by the message codec.",
	})
	ModemRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modem_rx_frames_total",
		Help: "Total packets received from the modem link.",
	})
	ModemTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modem_tx_frames_total",
		Help: "Total packets written to the modem link.",
	})
	QueuePushTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_push_total",
		Help: "Total records accepted into a queue.",
	})
	QueueRejectTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_reject_total",
		Help: "Total records rejected by QueueFull (reject-new policy).",
	})
	QueueAckTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_ack_total",
		Help: "Total records acknowledged.",
	})
	QueueExpireTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_expire_total",
		Help: "Total records dropped by TTL expiry.",
	})
	ContestWinnersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_contest_winners_total",
		Help: "Total queue entries selected by the priority contest.",
	})
	MonitorActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_active_clients",
		Help: "Current number of connected monitor TCP clients.",
	})
	MonitorDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_dropped_events_total",
		Help: "Total monitor events dropped due to a slow client.",
	})
	MonitorRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_rejected_clients_total",
		Help: "Total monitor client connections rejected (e.g. max-clients).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (bad checksum, length, or tag).",
	})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrDecode        = "decode"
	ErrEncode        = "encode"
	ErrModemWrite    = "modem_write"
	ErrModemRead     = "modem_read"
	ErrModemOverflow = "modem_tx_overflow"
	ErrMonitorWrite  = "monitor_write"
	ErrMonitorRead   = "monitor_read"
	ErrHandshake     = "handshake"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on a fresh mux.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to snapshot for logging without scraping
// Prometheus in-process.
var (
	localEncode       uint64
	localDecode       uint64
	localModemRx      uint64
	localModemTx      uint64
	localQueuePush    uint64
	localQueueReject  uint64
	localQueueAck     uint64
	localQueueExpire  uint64
	localContest      uint64
	localMonitorConns uint64
	localMonitorDrop  uint64
	localMonitorRej   uint64
	localErrors       uint64
	localMalformed    uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Encode       uint64
	Decode       uint64
	ModemRx      uint64
	ModemTx      uint64
	QueuePush    uint64
	QueueReject  uint64
	QueueAck     uint64
	QueueExpire  uint64
	Contest      uint64
	MonitorConns uint64
	MonitorDrop  uint64
	MonitorRej   uint64
	Errors       uint64
	Malformed    uint64
}

func Snap() Snapshot {
	return Snapshot{
		Encode:       atomic.LoadUint64(&localEncode),
		Decode:       atomic.LoadUint64(&localDecode),
		ModemRx:      atomic.LoadUint64(&localModemRx),
		ModemTx:      atomic.LoadUint64(&localModemTx),
		QueuePush:    atomic.LoadUint64(&localQueuePush),
		QueueReject:  atomic.LoadUint64(&localQueueReject),
		QueueAck:     atomic.LoadUint64(&localQueueAck),
		QueueExpire:  atomic.LoadUint64(&localQueueExpire),
		Contest:      atomic.LoadUint64(&localContest),
		MonitorConns: atomic.LoadUint64(&localMonitorConns),
		MonitorDrop:  atomic.LoadUint64(&localMonitorDrop),
		MonitorRej:   atomic.LoadUint64(&localMonitorRej),
		Errors:       atomic.LoadUint64(&localErrors),
		Malformed:    atomic.LoadUint64(&localMalformed),
	}
}

func IncEncode() { EncodeTotal.Inc(); atomic.AddUint64(&localEncode, 1) }
func IncDecode() { DecodeTotal.Inc(); atomic.AddUint64(&localDecode, 1) }

func IncModemRx() { ModemRxFrames.Inc(); atomic.AddUint64(&localModemRx, 1) }
func IncModemTx() { ModemTxFrames.Inc(); atomic.AddUint64(&localModemTx, 1) }

func IncQueuePush() { QueuePushTotal.Inc(); atomic.AddUint64(&localQueuePush, 1) }
func IncQueueReject() {
	QueueRejectTotal.Inc()
	atomic.AddUint64(&localQueueReject, 1)
}
func IncQueueAck() { QueueAckTotal.Inc(); atomic.AddUint64(&localQueueAck, 1) }
func IncQueueExpire() {
	QueueExpireTotal.Inc()
	atomic.AddUint64(&localQueueExpire, 1)
}
func IncContestWinner() {
	ContestWinnersTotal.Inc()
	atomic.AddUint64(&localContest, 1)
}

func SetMonitorClients(n int) {
	MonitorActiveClients.Set(float64(n))
	atomic.StoreUint64(&localMonitorConns, uint64(n))
}
func IncMonitorDrop() {
	MonitorDroppedEvents.Inc()
	atomic.AddUint64(&localMonitorDrop, 1)
}
func IncMonitorReject() {
	MonitorRejectedClients.Inc()
	atomic.AddUint64(&localMonitorRej, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrDecode, ErrEncode, ErrModemWrite, ErrModemRead, ErrModemOverflow,
		ErrMonitorWrite, ErrMonitorRead, ErrHandshake,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
