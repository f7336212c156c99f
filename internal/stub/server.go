// Package stub emulates the counterpart marketplace gateway for local
// development and tests: the per-session realtime channel (join,
// chat_history, message echo, error events) and the REST quote endpoint.
// It keeps everything in memory and makes no durability promises.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/servimatch/chatwire/internal/attachment"
	"github.com/servimatch/chatwire/internal/config"
	"github.com/servimatch/chatwire/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the stub marketplace gateway.
type Server struct {
	cfg     config.StubConfig
	rooms   *rooms
	engine  *gin.Engine
	httpSrv *http.Server
	janitor *janitor
	startAt time.Time
}

func NewServer(cfg config.StubConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:     cfg,
		rooms:   newRooms(),
		startAt: time.Now(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", s.ginHealth)
	engine.GET("/ws", s.ginWebSocket)
	engine.POST("/api/requests/:id/quotes", s.ginSubmitQuote)
	s.engine = engine
	return s
}

// Handler exposes the HTTP surface for in-process tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until ctx is cancelled. The janitor prunes idle session
// rooms on the configured schedule.
func (s *Server) Start(ctx context.Context) error {
	j, err := newJanitor(s.rooms, s.cfg.JanitorSchedule, s.cfg.IdleTTL())
	if err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	s.janitor = j
	s.janitor.start()
	defer s.janitor.stop()

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.engine,
	}

	slog.Info("stub gateway starting", "port", s.cfg.Port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ginHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startAt).String(),
		"sessions": s.rooms.count(),
	})
}

// bearerToken pulls the credential from the Authorization header or the
// token query parameter. The join payload is a third surface, checked later.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

func (s *Server) authorized(token string) bool {
	return s.cfg.Token == "" || token == s.cfg.Token
}

func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	sender := protocol.SenderRequester
	if c.Query("role") == "provider" {
		sender = protocol.SenderProvider
	}
	cl := &client{
		id:     uuid.NewString(),
		sender: sender,
		name:   c.Query("name"),
		ws:     ws,
	}

	// First frame must be a join.
	var frame protocol.Frame
	if err := ws.ReadJSON(&frame); err != nil {
		slog.Warn("failed to read join frame", "error", err)
		return
	}
	if frame.Event != protocol.EventJoin {
		sendError(cl, "first event must be join")
		return
	}

	var join protocol.JoinPayload
	if err := json.Unmarshal(frame.Payload, &join); err != nil {
		sendError(cl, "invalid join payload")
		return
	}

	token := bearerToken(c)
	if token == "" {
		token = join.Token
	}
	if !s.authorized(token) {
		sendError(cl, "invalid token")
		return
	}

	room := s.rooms.get(join.SessionID)
	room.add(cl)
	defer room.remove(cl.id)

	slog.Info("stub session joined", "session", join.SessionID, "conn", cl.id, "role", cl.sender)

	// History goes out immediately after a successful join.
	history, err := protocol.NewFrame(protocol.EventHistory, room.history())
	if err != nil {
		return
	}
	if err := cl.send(history); err != nil {
		return
	}

	for {
		var frame protocol.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			slog.Debug("stub connection closed", "conn", cl.id, "error", err)
			return
		}
		if frame.Event != protocol.EventMessage {
			sendError(cl, fmt.Sprintf("unsupported event %q", frame.Event))
			continue
		}
		s.handleMessage(room, cl, frame.Payload)
	}
}

func (s *Server) handleMessage(room *room, cl *client, payload json.RawMessage) {
	var out protocol.OutgoingMessage
	if err := json.Unmarshal(payload, &out); err != nil {
		sendError(cl, "invalid message payload")
		return
	}
	if out.Content == "" && out.Attachment == nil {
		sendError(cl, "message needs text or an attachment")
		return
	}
	if utf8.RuneCountInString(out.Content) > protocol.MaxContentLen {
		sendError(cl, "message exceeds 1000 characters")
		return
	}

	content := out.Content
	var metadata json.RawMessage
	if out.Attachment != nil {
		if !attachment.Allowed(out.Attachment.MimeType) {
			sendError(cl, fmt.Sprintf("attachment type %q is not supported", out.Attachment.MimeType))
			return
		}
		meta, err := attachment.Metadata(attachment.Encoded{
			Name:     out.Attachment.Filename,
			MimeType: attachment.NormalizeMime(out.Attachment.MimeType),
			Payload:  out.Attachment.Payload,
			Size:     out.Attachment.Size,
		})
		if err != nil {
			sendError(cl, "invalid attachment metadata")
			return
		}
		metadata = meta
		if content == "" {
			content = "Arquivo anexado"
		}
	}

	m := room.append(cl.sender, cl.name, content, metadata)
	echo, err := protocol.NewFrame(protocol.EventMessage, m)
	if err != nil {
		return
	}
	room.broadcast(echo)
}

func sendError(cl *client, message string) {
	f, err := protocol.NewFrame(protocol.EventError, protocol.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	cl.send(f)
}

func (s *Server) ginSubmitQuote(c *gin.Context) {
	if !s.authorized(bearerToken(c)) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}

	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request id"})
		return
	}

	var body struct {
		Amount decimal.Decimal `json:"amount"`
		Note   string          `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid quote payload"})
		return
	}
	if !body.Amount.IsPositive() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "amount must be greater than zero"})
		return
	}

	// The marketplace announces the quote in the conversation.
	room := s.rooms.get(requestID)
	m := room.append(protocol.SenderSystem, "", fmt.Sprintf("Orçamento enviado: R$ %s", body.Amount.StringFixed(2)), nil)
	if frame, err := protocol.NewFrame(protocol.EventMessage, m); err == nil {
		room.broadcast(frame)
	}

	c.JSON(http.StatusCreated, gin.H{"id": uuid.NewString(), "requestId": requestID})
}
