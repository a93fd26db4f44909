package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/flowedit/session"
	"github.com/BaSui01/flowedit/store"
	"github.com/BaSui01/flowedit/transport"

	"go.uber.org/zap"
)

// =============================================================================
// 🔌 WebSocket 入口
// =============================================================================

// ConnectionRecorder 记录在线连接数
type ConnectionRecorder interface {
	ConnectionOpened()
	ConnectionClosed()
}

// WebSocketConfig WebSocket 处理器配置
type WebSocketConfig struct {
	// OriginPatterns 允许的跨域来源，"*" 关闭来源检查
	OriginPatterns []string
	Session        session.Options
	Recorder       ConnectionRecorder
}

// WebSocketHandler 为每个连接创建编辑会话，并提供后端命令
type WebSocketHandler struct {
	router *transport.Router
	hub    *transport.Hub
	store  store.Store
	cfg    WebSocketConfig
	logger *zap.Logger
}

// NewWebSocketHandler 创建处理器；router 中的命令由所有连接共享
func NewWebSocketHandler(router *transport.Router, hub *transport.Hub, st store.Store, cfg WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		router: router,
		hub:    hub,
		store:  st,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "websocket")),
	}
}

// ServeHTTP 升级连接并服务到对端关闭
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := transport.Accept(w, r, transport.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns}, h.logger)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("conn_id", conn.ID()))
	if h.cfg.Recorder != nil {
		h.cfg.Recorder.ConnectionOpened()
		defer h.cfg.Recorder.ConnectionClosed()
	}
	if h.hub != nil {
		h.hub.Add(conn)
		defer h.hub.Remove(conn)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(conn, h.store, h.cfg.Session, logger)
	router := h.router.Clone()
	sess.Register(router)
	go sess.Run(ctx)

	logger.Info("client connected", zap.String("remote_addr", r.RemoteAddr))
	if err := router.Serve(ctx, conn); err != nil {
		logger.Warn("connection closed with error", zap.Error(err))
	} else {
		logger.Info("client disconnected")
	}
	cancel()
	<-sess.Done()
}
