package stubserver

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server, all origins welcome
	},
}

// Options configures stub behavior.
type Options struct {
	Logger *logging.Logger

	// SuppressHandshake skips the session_id frame normally sent on accept.
	SuppressHandshake bool

	// Reply overrides the canned response for a query. When nil, queries are
	// echoed back.
	Reply func(query string) protocol.Frame

	// DropOnQuery closes the socket without replying when a query arrives.
	DropOnQuery bool
}

type session struct {
	UserID  string
	History []historyEntry
}

type historyEntry struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// Server is the stub backend. Obtain its handler via Handler and serve it
// with net/http or httptest.
type Server struct {
	opts   Options
	logger *logging.Logger
	engine *gin.Engine

	mu       sync.Mutex
	sessions map[string]*session

	upgrades atomic.Int64
}

// New creates a stub backend server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*session),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
	}))

	engine.POST("/login", s.handleLogin)
	engine.POST("/create_session", s.handleCreateSession)
	engine.POST("/chat", s.handleChat)
	engine.GET("/ws/:user_id", s.handleStream)
	engine.DELETE("/session/:session_id", s.handleDeleteSession)
	engine.GET("/session/:session_id/history", s.handleHistory)
	engine.GET("/health", s.handleHealth)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler for the stub.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Upgrades reports how many streaming connections have been accepted.
func (s *Server) Upgrades() int {
	return int(s.upgrades.Load())
}

func (s *Server) mintSession(userID string) string {
	sessionID := userID + "_" + uuid.New().String()
	s.mu.Lock()
	s.sessions[sessionID] = &session{UserID: userID}
	s.mu.Unlock()
	return sessionID
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email and password are required"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Password must be at least 6 characters"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": uuid.New().String(),
		"email":   req.Email,
		"name":    req.Email,
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": s.mintSession(req.UserID)})
}

func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Query  string `json:"query"`
		UserID string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Empty query not allowed"})
		return
	}

	sessionID := s.getOrCreateSession(req.UserID)
	out := s.reply(sessionID, strings.TrimSpace(req.Query))
	if out.Error != "" {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": out.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": out.Response})
}

// getOrCreateSession reuses the user's existing session when one exists.
func (s *Server) getOrCreateSession(userID string) string {
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			s.mu.Unlock()
			return id
		}
	}
	s.mu.Unlock()
	return s.mintSession(userID)
}

func (s *Server) handleStream(c *gin.Context) {
	userID := c.Param("user_id")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	s.upgrades.Add(1)

	sessionID := s.mintSession(userID)
	if !s.opts.SuppressHandshake {
		if err := s.writeFrame(ws, protocol.Frame{SessionID: sessionID}); err != nil {
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.Decode(data)
		if err != nil || frame.Query == "" {
			if werr := s.writeFrame(ws, protocol.Frame{Error: "No query provided"}); werr != nil {
				return
			}
			continue
		}

		if s.opts.DropOnQuery {
			return
		}

		out := s.reply(sessionID, frame.Query)
		if err := s.writeFrame(ws, out); err != nil {
			return
		}
	}
}

func (s *Server) reply(sessionID, query string) protocol.Frame {
	var out protocol.Frame
	if s.opts.Reply != nil {
		out = s.opts.Reply(query)
	} else {
		out = protocol.Frame{SessionID: sessionID, Response: "echo: " + query}
	}

	if out.Response != "" {
		s.mu.Lock()
		if sess, ok := s.sessions[sessionID]; ok {
			sess.History = append(sess.History, historyEntry{
				Query:     query,
				Response:  out.Response,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
		s.mu.Unlock()
	}
	return out
}

func (s *Server) writeFrame(ws *websocket.Conn, frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleHistory(c *gin.Context) {
	sessionID := c.Param("session_id")

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	var history []historyEntry
	if ok {
		history = append(history, sess.History...)
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":           sessionID,
		"conversation_history": history,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "Stub backend is running"})
}
