package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arcanastream/reading-orchestrator/internal/auth"
	"github.com/arcanastream/reading-orchestrator/internal/orchestration"
	"github.com/arcanastream/reading-orchestrator/internal/stream"
)

var wsTracer = otel.Tracer("reading-websocket")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking for production
		return true
	},
}

// ReadingSocket streams reading sessions over WebSocket. The client sends
// one JSON request as its first message and receives the same event
// sequence the SSE endpoint produces, one JSON frame per event.
type ReadingSocket struct {
	service *orchestration.Service
	tracer  trace.Tracer
}

// NewReadingSocket creates a new WebSocket reading streamer
func NewReadingSocket(service *orchestration.Service) *ReadingSocket {
	return &ReadingSocket{
		service: service,
		tracer:  wsTracer,
	}
}

// wsFrame is the wire shape of one event frame.
type wsFrame struct {
	Event stream.Kind     `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StreamReading handles WebSocket /api/ws/reading
// @Summary Stream a tarot reading over WebSocket
// @Description WebSocket endpoint streaming the reading event sequence as JSON frames
// @Tags readings
// @Success 101 "Switching Protocols"
// @Failure 400 {object} map[string]string
// @Router /ws/reading [get]
func (p *ReadingSocket) StreamReading(c *gin.Context) {
	ctx, span := p.tracer.Start(c.Request.Context(), "reading_socket.stream")
	defer span.End()

	userID := c.GetString(auth.UserIDKey)
	if userID == "" {
		userID = "anonymous"
	}
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	// First client frame carries the reading request.
	_, msg, err := conn.ReadMessage()
	if err != nil {
		span.RecordError(err)
		log.Printf("Failed to read reading request: %v", err)
		return
	}

	var req StreamReadingRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		span.RecordError(err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid reading request"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "question must not be empty"))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Client -> ignore content, but a read error means the peer is gone
	// and the session should stop.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Client connection read error: %v", err)
				}
				cancel()
				return
			}
		}
	}()

	emit := func(ev stream.Event) error {
		data, err := ev.Data()
		if err != nil {
			return err
		}
		frame, err := json.Marshal(wsFrame{Event: ev.Kind, Data: data})
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	p.service.Run(runCtx, orchestration.Request{
		Question:   req.Question,
		UserID:     userID,
		SpreadType: req.SpreadType,
		Profile:    req.UserProfile,
		SourcePage: req.SourcePage,
	}, emit)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
