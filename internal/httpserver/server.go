package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/cardpop/internal/deckstore"
	"github.com/tinytelemetry/cardpop/internal/model"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:3117"

// Server provides an HTTP API over the deck collection and the current runner.
type Server struct {
	addr       string
	decks      model.DeckAPI
	controller model.RunnerController
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, decks model.DeckAPI, controller model.RunnerController) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		decks:      decks,
		controller: controller,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler builds the gin engine with every API route.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/decks", s.handleListDecks)
	api.GET("/decks/:id", s.handleGetDeck)
	api.POST("/decks", s.handleCreateDeck)
	api.DELETE("/decks/:id", s.handleDeleteDeck)
	api.GET("/runner", s.handleRunnerStatus)
	api.POST("/runner/:command", s.handleRunnerCommand)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"deck_count": len(s.decks.List()),
		"runner":     s.controller.Status().State,
	})
}

func (s *Server) handleListDecks(c *gin.Context) {
	decks := s.decks.List()

	summaries := make([]gin.H, 0, len(decks))
	for _, d := range decks {
		summaries = append(summaries, gin.H{
			"id":           d.ID,
			"name":         d.Name,
			"card_count":   len(d.Cards),
			"created":      d.CreatedAt,
			"lastModified": d.LastModifiedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"decks": summaries})
}

func (s *Server) handleGetDeck(c *gin.Context) {
	deck, err := s.decks.Get(c.Param("id"))
	if errors.Is(err, deckstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "deck not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, deck)
}

func (s *Server) handleCreateDeck(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	deck, err := s.decks.Create(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, deck)
}

func (s *Server) handleDeleteDeck(c *gin.Context) {
	if err := s.decks.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRunnerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleRunnerCommand(c *gin.Context) {
	cmd, err := model.ParseRunnerCommand(c.Param("command"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.controller.Send(cmd); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"command": cmd,
		"status":  s.controller.Status(),
	})
}
