// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package hostsim is a stand-in parent host. It serves the token validation
// endpoint and speaks the host side of the bridge protocol over a websocket,
// so the checkout can run in iframe mode without a real super app.
package hostsim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
)

// Options configures a Server.
type Options struct {
	// Tokens maps accepted session tokens to their payload. When nil every
	// non-empty token is accepted with a generated session id.
	Tokens map[string]gateway.Payload
	// Token is returned for REQUEST_TOKEN.
	Token string
	// User is returned for REQUEST_USER_INFO.
	User map[string]any
	// Pay answers REQUEST_PAYMENT. The default approves every payment.
	Pay    func(req json.RawMessage) any
	Logger *zap.Logger
}

// Server is a simulated parent host.
type Server struct {
	opts     Options
	log      *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*hostConn]struct{}
	received []model.Message
	changed  chan struct{}
}

type hostConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *hostConn) send(msg model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// New builds the simulator and its routes.
func New(opts Options) *Server {
	if opts.Token == "" {
		opts.Token = "sim-token"
	}
	if opts.User == nil {
		opts.User = map[string]any{
			"CustomerId":   "1001",
			"Fullname":     "Sim User",
			"MobileNumber": gateway.DefaultMobileNumber,
		}
	}
	if opts.Pay == nil {
		opts.Pay = approve
	}
	s := &Server{
		opts: opts,
		log:  logging.OrNop(opts.Logger).Named("hostsim"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns:   make(map[*hostConn]struct{}),
		changed: make(chan struct{}),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleWS)
	api := r.Group("/api")
	{
		api.GET("/validate-token", s.handleValidateToken)
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeConns()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	n := len(s.conns)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": n})
}

func (s *Server) handleValidateToken(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "token is required"})
		return
	}
	if s.opts.Tokens == nil {
		c.JSON(http.StatusOK, gin.H{"valid": true, "payload": gateway.Payload{"sessionId": "sim-" + uuid.NewString()}})
		return
	}
	payload, ok := s.opts.Tokens[token]
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": "invalid or expired token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "payload": payload})
}

func (s *Server) handleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	conn := &hostConn{ws: ws}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.log.Info("checkout connected", zap.String("origin", c.Request.Header.Get("Origin")))

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = ws.Close()
		s.log.Info("checkout disconnected")
	}()

	for {
		var msg model.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if msg.Source != model.AppSource {
			s.log.Debug("ignoring message from unknown source", zap.String("source", msg.Source))
			continue
		}
		s.record(msg)
		if err := s.answer(conn, msg); err != nil {
			s.log.Warn("reply failed", zap.String("type", msg.Type), zap.Error(err))
			return
		}
	}
}

// answer replies to requests; notices are only recorded.
func (s *Server) answer(conn *hostConn, msg model.Message) error {
	var (
		replyType string
		data      any
	)
	switch msg.Type {
	case model.TypeRequestToken:
		replyType, data = model.TypeTokenResponse, map[string]any{"token": s.opts.Token}
	case model.TypeRequestPayment:
		replyType, data = model.TypePaymentResult, s.opts.Pay(msg.Data)
	case model.TypeRequestUserInfo:
		replyType, data = model.TypeUserInfoResponse, s.opts.User
	default:
		s.log.Info("host notice", zap.String("type", msg.Type), zap.ByteString("data", msg.Data))
		return nil
	}
	out, err := hostMessage(replyType, msg.RequestID, data)
	if err != nil {
		return err
	}
	return conn.send(out)
}

// Push sends an unsolicited message, such as USER_UPDATE, to every connected checkout.
func (s *Server) Push(msgType string, data any) error {
	out, err := hostMessage(msgType, "", data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conns := make([]*hostConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.send(out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Connections returns the number of connected checkouts.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Received returns every message the checkout has sent.
func (s *Server) Received() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.received...)
}

// WaitFor blocks until a message of msgType has been received or timeout elapses.
func (s *Server) WaitFor(msgType string, timeout time.Duration) (model.Message, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		for _, m := range s.received {
			if m.Type == msgType {
				s.mu.Unlock()
				return m, true
			}
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			return model.Message{}, false
		}
	}
}

func (s *Server) record(msg model.Message) {
	s.mu.Lock()
	s.received = append(s.received, msg)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.mu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"))
		c.mu.Unlock()
	}
}

func hostMessage(msgType, requestID string, data any) (model.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		Type:      msgType,
		Source:    model.ParentSource,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
		RequestID: requestID,
	}, nil
}

func approve(json.RawMessage) any {
	return map[string]any{
		"success":       true,
		"transactionId": "HUB-" + uuid.NewString()[:8],
		"status":        "SUCCESS",
		"message":       "Payment approved by host",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
}
