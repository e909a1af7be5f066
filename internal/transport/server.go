package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/roastpush/roastpush-server/internal/metrics"
	"github.com/roastpush/roastpush-server/internal/obslog"
)

const (
	outBufferSize = 64
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

// Engine is the command surface the transport drives.
type Engine interface {
	JoinQueue(connID, playerID, tier, mode string)
	LeaveQueue(connID string)
	RequestState(connID, battleID string)
	SubmitRoast(connID, battleID string, round int, roast, mode string)
	EmojiReaction(connID, battleID, emoji string)
	Disconnect(connID string)
}

type conn struct {
	id     string
	ws     *websocket.Conn
	out    chan outFrame
	ctx    context.Context
	cancel context.CancelFunc
}

// Server accepts websocket connections and bridges frames to the engine.
// Each connection has one writer goroutine draining a buffered channel, so
// outbound frames for a connection are delivered in order.
type Server struct {
	mu     sync.RWMutex
	engine Engine
	conns  map[string]*conn
}

func NewServer() *Server {
	return &Server{conns: make(map[string]*conn)}
}

// SetEngine wires the command handler. Must be called before serving.
func (s *Server) SetEngine(e Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Send queues an outbound event for one connection. Frames for unknown or
// saturated connections are dropped; the engine never blocks on a client.
func (s *Server) Send(connID, event string, payload any) {
	s.mu.RLock()
	c, ok := s.conns[connID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.out <- outFrame{Event: event, Data: payload}:
	default:
		obslog.L().Warn("dropping frame for slow connection",
			zap.String("conn", connID), zap.String("event", event))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		out:    make(chan outFrame, outBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	s.register(c)
	obslog.L().Info("client connected", zap.String("conn", c.id))

	go s.writeLoop(c)
	go s.pingLoop(c)

	s.readLoop(c)

	s.unregister(c)
	c.cancel()
	_ = ws.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("client disconnected", zap.String("conn", c.id))

	s.mu.RLock()
	eng := s.engine
	s.mu.RUnlock()
	if eng != nil {
		eng.Disconnect(c.id)
	}
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	n := len(s.conns)
	s.mu.Unlock()
	metrics.Connections.Set(float64(n))
}

func (s *Server) unregister(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	n := len(s.conns)
	s.mu.Unlock()
	metrics.Connections.Set(float64(n))
}

func (s *Server) readLoop(c *conn) {
	for {
		var f Frame
		if err := wsjson.Read(c.ctx, c.ws, &f); err != nil {
			return
		}
		s.dispatch(c.id, f)
	}
}

func (s *Server) writeLoop(c *conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(ctx, c.ws, f)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (s *Server) pingLoop(c *conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					c.cancel()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (s *Server) dispatch(connID string, f Frame) {
	s.mu.RLock()
	eng := s.engine
	s.mu.RUnlock()
	if eng == nil {
		return
	}

	switch f.Event {
	case eventJoinQueue:
		var d joinQueueData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			obslog.L().Warn("bad join_queue payload", zap.String("conn", connID), zap.Error(err))
			return
		}
		eng.JoinQueue(connID, d.PlayerID, d.Tier, d.Mode)
	case eventLeaveQueue:
		eng.LeaveQueue(connID)
	case eventRequestState:
		var d requestStateData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return
		}
		eng.RequestState(connID, d.BattleID)
	case eventSubmitRoast:
		var d submitRoastData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			obslog.L().Warn("bad submit_roast payload", zap.String("conn", connID), zap.Error(err))
			return
		}
		eng.SubmitRoast(connID, d.BattleID, d.Round, d.Roast, d.Mode)
	case eventEmojiReaction:
		var d emojiReactionData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return
		}
		eng.EmojiReaction(connID, d.BattleID, d.Emoji)
	default:
		obslog.L().Warn("unknown event", zap.String("conn", connID), zap.String("event", f.Event))
	}
}

// CloseAll disconnects every client, for shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutdown")
	}
}
