// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/balance_recorder/internal/operator"
	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// recordEvery thins the live record stream sent to browsers.
const recordEvery = 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Controller is the part of the session controller the panel drives.
type Controller interface {
	Submit(ctx context.Context, cmd session.Command) (session.Status, error)
	Snapshot(ctx context.Context) (session.Status, error)
}

// WSMessage is sent by the browser.
type WSMessage struct {
	Action  string `json:"action"` // command, status
	Command string `json:"command,omitempty"`
}

// WSResponse is pushed to the browser.
type WSResponse struct {
	Type    string          `json:"type"` // status, event, record, error
	Event   string          `json:"event,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  *session.Status `json:"status,omitempty"`
	Record  *record.Record  `json:"record,omitempty"`
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// Hub fans controller events out to websocket clients. Slow clients miss
// messages instead of stalling the controller.
type Hub struct {
	mu      sync.Mutex
	clients map[chan WSResponse]struct{}
	seen    uint64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan WSResponse]struct{})}
}

func (h *Hub) register() chan WSResponse {
	ch := make(chan WSResponse, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(ch chan WSResponse) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) broadcast(msg WSResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) OnEvent(ev session.Event) {
	st := ev.Status
	h.broadcast(WSResponse{
		Type:    "event",
		Event:   string(ev.Kind),
		Message: ev.Message,
		Status:  &st,
	})
}

func (h *Hub) OnRecord(_ session.Info, rec record.Record) {
	h.mu.Lock()
	h.seen++
	skip := h.seen%recordEvery != 1
	h.mu.Unlock()
	if skip {
		return
	}
	h.broadcast(WSResponse{Type: "record", Record: &rec})
}

// Panel serves the operator web UI: status JSON, commands, a rendered
// status frame and a websocket event stream.
type Panel struct {
	ctrl Controller
	hub  *Hub
}

func NewPanel(ctrl Controller, hub *Hub) *Panel {
	return &Panel{ctrl: ctrl, hub: hub}
}

// Handler builds the gin router.
func (p *Panel) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/status", p.handleStatus)
	api.POST("/command", p.handleCommand)
	api.GET("/frame.png", p.handleFrame)
	r.GET("/ws", func(c *gin.Context) {
		p.serveWS(c.Writer, c.Request)
	})
	return r
}

// Run serves the panel on addr until ctx is cancelled.
func (p *Panel) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (p *Panel) handleStatus(c *gin.Context) {
	st, err := p.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(statusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (p *Panel) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := p.submit(c.Request.Context(), req.Command)
	if err != nil {
		c.JSON(statusCode(err), gin.H{"error": err.Error(), "status": st})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (p *Panel) handleFrame(c *gin.Context) {
	st, err := p.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(statusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := WriteFramePNG(c.Writer, st); err != nil {
		log.Printf("web: frame encode error: %v", err)
	}
}

func (p *Panel) submit(ctx context.Context, line string) (session.Status, error) {
	cmd, err := operator.ParseCommand(line)
	if err != nil {
		return session.Status{}, err
	}
	return p.ctrl.Submit(ctx, cmd)
}

// statusCode maps controller and parse errors to HTTP codes.
func statusCode(err error) int {
	var unknown *operator.UnknownCommandError
	var protocol *session.ProtocolError
	switch {
	case errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.As(err, &protocol), errors.Is(err, session.ErrNoSample):
		return http.StatusConflict
	case errors.Is(err, session.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (p *Panel) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	out := p.hub.register()
	defer p.hub.unregister(out)

	if st, err := p.ctrl.Snapshot(r.Context()); err == nil {
		if err := conn.WriteJSON(WSResponse{Type: "status", Status: &st}); err != nil {
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// single writer: replies from the reader go through the same channel
	replies := make(chan WSResponse, 8)
	go func() {
		defer cancel()
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}
			select {
			case replies <- p.handleWSMessage(ctx, msg):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var msg WSResponse
		select {
		case <-ctx.Done():
			return
		case msg = <-out:
		case msg = <-replies:
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("web: websocket write error: %v", err)
			return
		}
	}
}

func (p *Panel) handleWSMessage(ctx context.Context, msg WSMessage) WSResponse {
	var (
		st  session.Status
		err error
	)
	switch msg.Action {
	case "command":
		st, err = p.submit(ctx, msg.Command)
	case "status":
		st, err = p.ctrl.Snapshot(ctx)
	default:
		return WSResponse{Type: "error", Message: "unknown action " + msg.Action}
	}
	if err != nil {
		return WSResponse{Type: "error", Message: err.Error()}
	}
	return WSResponse{Type: "status", Status: &st}
}
