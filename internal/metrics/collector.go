package metrics

import (
	"time"

	"github.com/BaSui01/flowedit/editor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// RPC 指标
	rpcRequestsTotal   *prometheus.CounterVec
	rpcRequestDuration *prometheus.HistogramVec
	wsConnections      prometheus.Gauge

	// 编辑器指标
	gesturesStarted *prometheus.CounterVec
	gesturesEnded   *prometheus.CounterVec
	nodesCreated    prometheus.Counter
	linkEvents      *prometheus.CounterVec
	linkRejections  *prometheus.CounterVec

	// 执行指标
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建注册到默认 Registry 的收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry 创建注册到 reg 的收集器
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	// HTTP 指标
	c.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	c.httpResponseSize = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// RPC 指标
	c.rpcRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of websocket RPC requests",
		},
		[]string{"method", "status"},
	)
	c.rpcRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Websocket RPC handling time in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method"},
	)
	c.wsConnections = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Number of open websocket connections",
	})

	// 编辑器指标
	c.gesturesStarted = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "gestures_started_total",
			Help:      "Gestures started, by kind",
		},
		[]string{"kind"},
	)
	c.gesturesEnded = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "gestures_ended_total",
			Help:      "Gestures ended, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	c.nodesCreated = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "editor",
		Name:      "nodes_created_total",
		Help:      "Nodes added to a workspace",
	})
	c.linkEvents = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "link_events_total",
			Help:      "Links created or evicted",
		},
		[]string{"event"},
	)
	c.linkRejections = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "link_rejections_total",
			Help:      "Link attempts rejected, by reason",
		},
		[]string{"reason"},
	)

	// 执行指标
	c.executionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Workflow executions by final status",
		},
		[]string{"status"},
	)
	c.executionDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "workflow_execution_duration_seconds",
		Help:      "Workflow execution duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// 缓存指标
	c.cacheHits = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)
	c.cacheMisses = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 数据库指标
	c.dbConnectionsOpen = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)
	c.dbConnectionsIdle = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP / RPC 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordRPC 记录一次 RPC 调用，status 为 success 或 error
func (c *Collector) RecordRPC(method, status string, duration time.Duration) {
	c.rpcRequestsTotal.WithLabelValues(method, status).Inc()
	c.rpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ConnectionOpened / ConnectionClosed 跟踪 websocket 连接数
func (c *Collector) ConnectionOpened() { c.wsConnections.Inc() }

func (c *Collector) ConnectionClosed() { c.wsConnections.Dec() }

// RecordExecution 记录工作流模拟执行
func (c *Collector) RecordExecution(status string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(status).Inc()
	c.executionDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🖱️ 编辑器指标
// =============================================================================

// EditorObserver 返回写入本收集器的 editor.Observer
func (c *Collector) EditorObserver() editor.Observer {
	return editorObserver{c: c}
}

type editorObserver struct{ c *Collector }

func (o editorObserver) GestureStarted(kind editor.GestureKind) {
	o.c.gesturesStarted.WithLabelValues(string(kind)).Inc()
}

func (o editorObserver) GestureEnded(kind editor.GestureKind, outcome string) {
	o.c.gesturesEnded.WithLabelValues(string(kind), outcome).Inc()
}

func (o editorObserver) NodeCreated() { o.c.nodesCreated.Inc() }

func (o editorObserver) LinkCreated() { o.c.linkEvents.WithLabelValues("created").Inc() }

func (o editorObserver) LinkEvicted() { o.c.linkEvents.WithLabelValues("evicted").Inc() }

func (o editorObserver) LinkRejected(reason string) {
	o.c.linkRejections.WithLabelValues(reason).Inc()
}

// =============================================================================
// 💾 缓存 / 数据库指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码归类
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
