// Package ws implements the real-time propagation hub: it accepts bid
// submissions over persistent WebSocket sessions, broadcasts accepted bids
// to every session, and notifies losers individually with the current
// authoritative state.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 1024

	// sendBufferSize is the channel buffer for outgoing messages per
	// session. A session that falls this far behind starts losing
	// messages rather than stalling the hub.
	sendBufferSize = 256

	// bidTimeout bounds one bid resolution round trip.
	bidTimeout = 5 * time.Second
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// BidService is what the hub needs from the bidding layer. Declared locally
// so the hub does not depend on the concrete service implementation.
type BidService interface {
	PlaceBid(ctx context.Context, auctionID string, amount float64, bidder string) (domain.BidOutcome, error)
	ServerTime() time.Time
}

// placeBidMsg is the frame a client sends to submit a bid.
type placeBidMsg struct {
	AuctionID string  `json:"auctionId"`
	Amount    float64 `json:"amount"`
	BidderID  string  `json:"bidderId"`
}

// errorMsg is the targeted frame sent only to a submitter whose bid did not
// go through. Other sessions never learn about rejected attempts.
type errorMsg struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId"`
	Message   string `json:"message"`
}

// helloMsg is sent once on connect so clients can compute a clock offset
// immediately.
type helloMsg struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

// session represents a single connected observer. The send channel is
// closed exactly once, by the hub, via shutdown; enqueue checks the closed
// flag under the same lock so a late targeted reply can never hit a closed
// channel.
type session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// Hub manages the set of connected sessions. Accepted bids arrive through
// the event bus, published inside the atomic resolution step, and are
// fanned out to every session; because the bus subscription, the hub loop,
// and each per-session queue are FIFO, two updates for one auction are
// never reordered for any single session.
type Hub struct {
	sessions   map[*session]bool
	broadcast  chan []byte
	register   chan *session
	unregister chan *session
	bus        domain.EventBus
	bids       BidService
	channel    string
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub that bridges the accepted-bid channel to connected
// sessions and feeds submitted bids into the given service.
func NewHub(bus domain.EventBus, bids BidService, channel string, logger *slog.Logger) *Hub {
	return &Hub{
		sessions:   make(map[*session]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *session),
		unregister: make(chan *session),
		bus:        bus,
		bids:       bids,
		channel:    channel,
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run starts the hub's main event loop. It should be called in a
// goroutine. The loop exits when the context is cancelled: every session is
// shut down and the done channel is closed, which unblocks any session
// goroutine still trying to register or unregister.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	go h.bridge(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				s.shutdown()
				delete(h.sessions, s)
			}
			h.mu.Unlock()
			return ctx.Err()

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			h.mu.Unlock()
			h.logger.Info("session connected",
				slog.String("session_id", s.id),
				slog.Int("total_sessions", h.sessionCount()),
			)

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				s.shutdown()
			}
			h.mu.Unlock()
			h.logger.Info("session disconnected",
				slog.String("session_id", s.id),
				slog.Int("total_sessions", h.sessionCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for s := range h.sessions {
				select {
				case s.send <- msg:
				default:
					// Session's send buffer is full; drop rather than
					// stall delivery to everyone else.
					h.logger.Warn("dropping update for slow session",
						slog.String("session_id", s.id),
					)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// bridge subscribes to the accepted-bid channel and forwards envelopes to
// the broadcast loop.
func (h *Hub) bridge(ctx context.Context) {
	msgCh, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		h.logger.Error("failed to subscribe to bid channel",
			slog.String("channel", h.channel),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Info("subscribed to bid channel", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("bid channel subscription closed")
				return
			}
			h.broadcast <- data
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the session with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := &session{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- s:
	case <-h.done:
		// The hub already stopped; nobody will ever receive this session.
		conn.Close()
		return
	}
	s.sendHello()

	go s.writePump()
	go s.readPump()
}

// sessionCount returns the number of currently connected sessions.
func (h *Hub) sessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// sendHello pushes the server clock so the client can compute its offset
// before any bid traffic flows.
func (s *session) sendHello() {
	msg, err := json.Marshal(helloMsg{
		Type:       "hello",
		ServerTime: s.hub.bids.ServerTime().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.enqueue(msg)
}

// enqueue is a best-effort non-blocking send to this session only. It is a
// no-op after the hub has shut the session down.
func (s *session) enqueue(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
	}
}

// shutdown closes the send channel. Only the hub loop calls this, so there
// is never a concurrent close against the hub's own broadcast sends.
func (s *session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// readPump reads bid submissions from the WebSocket connection and feeds
// them to the bid service. It owns all targeted replies: rejections of any
// kind go only to this session.
func (s *session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("unexpected close error",
					slog.String("session_id", s.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var bid placeBidMsg
		if err := json.Unmarshal(message, &bid); err != nil {
			s.reply(errorMsg{Type: "bid_error", Message: "malformed bid"})
			continue
		}
		s.handleBid(bid)
	}
}

// handleBid resolves one submission and delivers the targeted outcome.
// Accepted bids produce no direct reply: the broadcast arriving through the
// bus already includes the submitter.
func (s *session) handleBid(bid placeBidMsg) {
	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	outcome, err := s.hub.bids.PlaceBid(ctx, bid.AuctionID, bid.Amount, bid.BidderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidBid):
			s.reply(errorMsg{Type: "bid_error", AuctionID: bid.AuctionID, Message: err.Error()})
		case errors.Is(err, domain.ErrAuctionClosed), errors.Is(err, domain.ErrAuctionNotFound):
			s.reply(errorMsg{Type: "bid_error", AuctionID: bid.AuctionID, Message: "Auction ended or invalid item!"})
		default:
			s.hub.logger.Error("bid resolution failed",
				slog.String("session_id", s.id),
				slog.String("auction_id", bid.AuctionID),
				slog.String("error", err.Error()),
			)
			s.reply(errorMsg{Type: "bid_error", AuctionID: bid.AuctionID, Message: "System error processing bid"})
		}
		return
	}

	if outcome.Accepted {
		return
	}

	// Outbid: tell only this session, then hand it the authoritative
	// state so the client can reconcile without another request.
	s.reply(errorMsg{Type: "bid_error", AuctionID: bid.AuctionID, Message: "You were outbid! Update received."})
	s.reply(domain.BidUpdate{
		Type:      domain.UpdateTypeBid,
		AuctionID: bid.AuctionID,
		Price:     outcome.Price,
		Winner:    "unknown",
	})
}

// reply marshals a targeted frame onto this session's send queue.
func (s *session) reply(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.enqueue(msg)
}

// writePump pumps messages from the hub to the WebSocket connection and
// sends periodic ping frames for keepalive.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
