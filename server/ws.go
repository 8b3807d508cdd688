package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/barrens-chat/backend/auth"
	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendQueueDepth = 64
)

// upgrader accepts any origin; browser-facing origin policy is enforced by
// the CORS layer in front of the frontend, and tokens are still verified
// per connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway owns the websocket endpoint: it authenticates each connection,
// binds it to a participant, registers presence, and pumps inbound events
// into the message router.
type Gateway struct {
	verifier auth.Verifier
	registry *chat.Registry
	router   *chat.Router
	parser   *chat.Parser
	hub      *Hub
	log      *slog.Logger

	rateWindow time.Duration
	rateMax    int
}

// NewGateway wires the websocket gateway. rateWindow and rateMax configure
// the per-connection message rate limiter.
func NewGateway(verifier auth.Verifier, registry *chat.Registry, router *chat.Router, parser *chat.Parser, hub *Hub, rateWindow time.Duration, rateMax int, log *slog.Logger) *Gateway {
	return &Gateway{
		verifier:   verifier,
		registry:   registry,
		router:     router,
		parser:     parser,
		hub:        hub,
		log:        log,
		rateWindow: rateWindow,
		rateMax:    rateMax,
	}
}

// sendPayload is the data of an inbound message:send event. Target names the
// emote recipient, if any.
type sendPayload struct {
	Content string    `json:"content"`
	Kind    chat.Kind `json:"kind"`
	Target  string    `json:"target,omitempty"`
}

// HandleWS upgrades the connection, verifies the credential, and runs the
// read loop until the client goes away. Authentication failures produce an
// error event with code AUTH_FAILED and close the socket before any
// presence mutation happens.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", slog.Any("err", err), slog.String("remote_addr", r.RemoteAddr))
		return
	}
	telemetry.ConnectionsTotal.Inc()

	identity, err := g.verifier.Verify(credentialFrom(r))
	if err != nil {
		telemetry.AuthFailures.Inc()
		g.log.Warn("connection rejected", slog.Any("err", err), slog.String("remote_addr", r.RemoteAddr))
		g.rejectUnauthenticated(conn)
		return
	}

	participant := chat.Participant{
		ID:          identity.UserID,
		DisplayName: identity.Username,
		AvatarURL:   identity.AvatarURL,
	}

	c := &client{send: make(chan []byte, sendQueueDepth)}
	go g.writePump(conn, c)

	g.hub.register(c)
	g.registry.AddHuman(participant)
	telemetry.SetConnected(g.registry.HumanCount())

	// Join ordering: peers hear about the newcomer, the newcomer gets the
	// authoritative roster (itself included) and never its own join event.
	g.hub.broadcast(evtParticipantJoin, participant, c)
	roster := g.registry.ListAll()
	g.hub.sendTo(c, evtParticipantsList, rosterPayload{Participants: roster, Count: len(roster)})

	g.log.Info("participant connected",
		slog.String("user_id", participant.ID),
		slog.String("username", participant.DisplayName))

	g.readLoop(r.Context(), conn, c, participant)
	g.disconnect(c, participant)
}

// credentialFrom extracts the token from the `token` cookie, falling back to
// the `token` query parameter for non-browser clients.
func credentialFrom(r *http.Request) string {
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// rejectUnauthenticated tells the client why it is being dropped, then
// closes. Best-effort; the client may already be gone.
func (g *Gateway) rejectUnauthenticated(conn *websocket.Conn) {
	frame, err := json.Marshal(outEvent{
		Type: evtError,
		Data: errorPayload{Code: chat.CodeAuthFailed, Message: "authentication failed"},
	})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.Close()
}

// readLoop consumes inbound frames until the connection errors or closes.
// Every inbound event type is matched explicitly; anything unrecognized is a
// validation error back to the sender, never a silent drop.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, c *client, participant chat.Participant) {
	limiter := chat.NewRateLimiter(g.rateWindow, g.rateMax)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.log.Debug("websocket read error", slog.Any("err", err), slog.String("user_id", participant.ID))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			g.hub.sendError(c, chat.CodeValidationError, "malformed event")
			continue
		}

		switch env.Type {
		case evtMessageSend:
			g.handleSend(ctx, c, participant, limiter, env.Data)
		default:
			g.hub.sendError(c, chat.CodeValidationError, "unknown event type")
		}
	}
}

// handleSend runs one inbound message through the slash command parser and
// the router. Rejections go back to the sender only.
func (g *Gateway) handleSend(ctx context.Context, c *client, participant chat.Participant, limiter *chat.RateLimiter, data json.RawMessage) {
	var payload sendPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		g.hub.sendError(c, chat.CodeValidationError, "malformed message payload")
		return
	}

	content := payload.Content
	kind := payload.Kind
	if kind == "" {
		kind = chat.KindText
	}

	// Slash commands rewrite both content and kind; plain text keeps the
	// kind the client asked for so the router's kind gate still applies.
	if result := g.parser.Parse(payload.Content, payload.Target); result.Kind != chat.KindText {
		content = result.Content
		kind = result.Kind
	} else {
		content = result.Content
	}

	_, err := g.router.Submit(ctx, participant, limiter, content, kind)
	if err == nil {
		return
	}
	var rerr *chat.RoutingError
	if errors.As(err, &rerr) {
		g.hub.sendError(c, rerr.Code, rerr.Message)
		return
	}
	g.hub.sendError(c, chat.CodeInternalError, "failed to send message")
}

// disconnect tears a connection down. It is idempotent: the hub removal and
// the roster removal both tolerate repeats, and participant:left goes out
// only when the roster actually held the entry.
func (g *Gateway) disconnect(c *client, participant chat.Participant) {
	g.hub.unregister(c)
	left, found := g.registry.RemoveHuman(participant.ID)
	telemetry.SetConnected(g.registry.HumanCount())
	if found {
		g.hub.broadcast(evtParticipantLeft, left, nil)
		g.log.Info("participant disconnected",
			slog.String("user_id", left.ID),
			slog.String("username", left.DisplayName))
	}
}

// writePump drains the client's send queue onto the socket and keeps the
// connection alive with pings. It exits when the queue closes or a write
// fails, closing the socket either way so the read loop unblocks.
func (g *Gateway) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
