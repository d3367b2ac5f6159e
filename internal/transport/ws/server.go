// Package ws is the websocket front of a running world. Players send INPUT; players and observers
// receive FRAME snapshots at a capped rate and can page through the indexed event stream.
package ws

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"factorysim.ai/internal/persistence/indexdb"
	"factorysim.ai/internal/protocol"
	"factorysim.ai/internal/sim/events"
	"factorysim.ai/internal/sim/model"
	"factorysim.ai/internal/sim/world"
)

// EventQuery pages the event read model.
type EventQuery interface {
	EventsSince(ctx context.Context, since int64, limit int, typ events.Type) ([]indexdb.EventRow, int64, error)
}

type Server struct {
	world  *world.World
	events EventQuery
	log    zerolog.Logger

	digests  protocol.CatalogDigests
	frameHz  float64
	inputHz  float64
	upgrader websocket.Upgrader
}

// NewServer serves w. q may be nil, in which case EVENT_BATCH_REQ answers E_UNAVAILABLE.
func NewServer(w *world.World, q EventQuery, logger zerolog.Logger) *Server {
	tu := w.Tuning()
	cats := w.Catalogs()
	s := &Server{
		world:  w,
		events: q,
		log:    logger.With().Str("component", "ws").Logger(),
		digests: protocol.CatalogDigests{
			Items:      cats.Items.Digest,
			Facilities: cats.Facilities.Digest,
			Agents:     cats.Agents.Digest,
			Tuning:     digestJSON(tu),
		},
		frameHz: tu.ObserverMaxFPS,
		inputHz: float64(2 * tu.TickRateHz),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

type session struct {
	id      string
	role    string
	agentID model.AgentID

	conn   *websocket.Conn
	frames chan []byte
	reply  chan []byte
	input  *rate.Limiter
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		log := s.log.With().Str("session", sess.id).Str("role", sess.role).Logger()

		select {
		case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sess.id, Out: sess.frames}:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sess.id:
			default:
			}
		}()
		log.Info().Msg("session opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() { writeErr <- s.writer(ctx, sess) }()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(ctx, sess, msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		log.Info().Msg("session closed")
	}
}

// writer owns the connection's write side. Replies always go out; frames are skipped while the
// limiter has no token, the next frame supersedes them anyway.
func (s *Server) writer(ctx context.Context, sess *session) error {
	lim := rate.NewLimiter(rate.Limit(s.frameHz), 1)
	for {
		var b []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b = <-sess.reply:
		case b = <-sess.frames:
			if !lim.Allow() {
				continue
			}
		}
		_ = sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := sess.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	base, err := protocol.ValidateClient(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoVersion, "unsupported protocol_version"))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	sess := &session{
		id:     uuid.NewString(),
		role:   hello.Role,
		conn:   conn,
		frames: make(chan []byte, 1),
		reply:  make(chan []byte, 16),
		input:  rate.NewLimiter(rate.Limit(s.inputHz), int(s.inputHz)+1),
	}
	if hello.Role == protocol.RolePlayer {
		sess.agentID = s.world.PlayerID()
		if sess.agentID == "" {
			_ = writeJSON(conn, protocol.NewError(protocol.ErrUnknownAgent, "world has no player"))
			return nil
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
		WorldID:         s.world.ID(),
		RunID:           s.world.RunID(),
		AgentID:         string(sess.agentID),
		TickRateHz:      s.world.TickRateHz(),
		Catalogs:        s.digests,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	return sess
}

func (s *Server) handleMessage(ctx context.Context, sess *session, msg []byte) {
	base, err := protocol.ValidateClient(msg)
	if err != nil {
		s.replyError(sess, protocol.ErrProtoBadRequest, err.Error())
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.replyError(sess, protocol.ErrProtoVersion, "unsupported protocol_version")
		return
	}

	switch base.Type {
	case protocol.TypeInput:
		if sess.role != protocol.RolePlayer {
			s.replyError(sess, protocol.ErrBadRequest, "observers cannot send INPUT")
			return
		}
		if !sess.input.Allow() {
			s.replyError(sess, protocol.ErrRateLimit, "too many inputs")
			return
		}
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			s.replyError(sess, protocol.ErrBadRequest, err.Error())
			return
		}
		env := world.InputEnvelope{AgentID: sess.agentID, Input: in}
		select {
		case s.world.Inbox() <- env:
		default:
			s.replyError(sess, protocol.ErrWorldBusy, "input queue full")
		}

	case protocol.TypeEventBatchReq:
		var req protocol.EventBatchReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			s.replyError(sess, protocol.ErrBadRequest, err.Error())
			return
		}
		s.handleEventBatch(ctx, sess, req)

	default:
		s.replyError(sess, protocol.ErrBadRequest, "unexpected "+base.Type)
	}
}

func (s *Server) handleEventBatch(ctx context.Context, sess *session, req protocol.EventBatchReqMsg) {
	if s.events == nil {
		s.replyError(sess, protocol.ErrUnavailable, "event index disabled")
		return
	}
	qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rows, next, err := s.events.EventsSince(qctx, req.SinceCursor, req.Limit, events.Type(req.EventType))
	if err != nil {
		s.log.Warn().Err(err).Str("session", sess.id).Msg("event batch query failed")
		s.replyError(sess, protocol.ErrInternal, "event query failed")
		return
	}
	out := protocol.EventBatchMsg{
		Type:            protocol.TypeEventBatch,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		Events:          make([]protocol.EventBatchItem, 0, len(rows)),
		NextCursor:      next,
	}
	for _, r := range rows {
		out.Events = append(out.Events, protocol.EventBatchItem{Cursor: r.Cursor, Event: r.Event})
	}
	s.reply(sess, out)
}

func (s *Server) replyError(sess *session, code, msg string) {
	s.reply(sess, protocol.NewError(code, msg))
}

func (s *Server) reply(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.reply <- b:
	default:
		s.log.Warn().Str("session", sess.id).Msg("reply dropped")
	}
}

// StatusHandler reports loop metrics to loopback callers only.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.world.Metrics())
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func digestJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
