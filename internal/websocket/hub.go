package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"session-tracker/internal/address"
	"session-tracker/internal/config"
	"session-tracker/internal/models"
	"session-tracker/internal/presence"
	"session-tracker/pkg/logger"

	"github.com/gorilla/websocket"
)

const invalidFormat = "Invalid message format"

// MessageObserver counts dispatched messages by type and outcome.
type MessageObserver interface {
	ObserveMessage(msgType models.MessageType, outcome string)
}

type frame struct {
	client *Client
	data   []byte
}

// Hub is the broadcast gateway. Registration, inbound frames, disconnects
// and the periodic sweep are all handled on the Run goroutine, so they
// reach the engine in one order.
type Hub struct {
	engine    *presence.Engine
	observer  MessageObserver
	cfg       config.WebSocketConfig
	heartbeat time.Duration

	frames     chan frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(engine *presence.Engine, cfg config.WebSocketConfig, heartbeat time.Duration, observer MessageObserver) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		engine:     engine,
		observer:   observer,
		cfg:        cfg,
		heartbeat:  heartbeat,
		frames:     make(chan frame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			if err := h.engine.Connect(client.id, client); err != nil {
				logger.Error("Error registering connection %s: %v", client.id, err)
				client.Close()
				continue
			}
			h.reply(client, models.OutboundMessage{
				Type:         models.MessageTypeConnected,
				ConnectionID: client.id,
				Timestamp:    models.Millis(time.Now()),
			})
			logger.Debug("Connection %s opened", client.id)

		case client := <-h.unregister:
			h.Deliver(h.engine.Disconnect(client.id, time.Now())...)
			logger.Debug("Connection %s closed", client.id)

		case f := <-h.frames:
			h.dispatch(f.client, f.data)

		case now := <-ticker.C:
			h.Deliver(h.engine.Sweep(now)...)
		}
	}
}

// Attach wraps an upgraded connection in a Client, registers it and starts
// its pumps.
func (h *Hub) Attach(conn *websocket.Conn) (*Client, error) {
	client := NewClient(h, conn, h.cfg)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil, errors.New("hub is stopped")
	}
	go client.WritePump()
	go client.ReadPump()
	return client, nil
}

func (h *Hub) submit(c *Client, data []byte) bool {
	select {
	case h.frames <- frame{client: c, data: data}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver writes each broadcast to its targets. A target that cannot take
// the message is closed; its read pump then drives the leave.
func (h *Hub) Deliver(broadcasts ...presence.Broadcast) {
	for _, b := range broadcasts {
		if len(b.Targets) == 0 {
			continue
		}
		data, err := json.Marshal(b.Message)
		if err != nil {
			logger.Error("Error marshaling %s broadcast: %v", b.Message.Type, err)
			continue
		}
		for _, ch := range b.Targets {
			if !ch.Send(data) {
				ch.Close()
			}
		}
	}
}

var errInvalidFormat = errors.New(invalidFormat)

func (h *Hub) dispatch(c *Client, raw []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.observe("invalid", err)
		h.reply(c, models.OutboundMessage{Error: invalidFormat})
		return
	}

	err := h.handle(c, msg.Type, msg.Data, time.Now())
	h.observe(msg.Type, err)
	if err != nil {
		h.reply(c, models.OutboundMessage{Error: err.Error()})
	}
}

// handle resolves the message type before touching data, so ping and
// unknown types never fail on a payload they do not read.
func (h *Hub) handle(c *Client, msgType models.MessageType, data json.RawMessage, now time.Time) error {
	switch msgType {
	case models.MessageTypePing:
		h.reply(c, models.OutboundMessage{
			Type:      models.MessageTypePong,
			Timestamp: models.Millis(now),
		})
		return nil
	case models.MessageTypeJoinSession, models.MessageTypeLeaveSession,
		models.MessageTypeUserActivity, models.MessageTypeExecuteCommand,
		models.MessageTypeGetSessionState:
	default:
		return fmt.Errorf("%w: %s", presence.ErrUnknownMessageType, msgType)
	}

	var p models.SessionPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return errInvalidFormat
		}
	}
	return h.handlePayload(c, msgType, p, now)
}

func (h *Hub) handlePayload(c *Client, msgType models.MessageType, p models.SessionPayload, now time.Time) error {
	switch msgType {
	case models.MessageTypeJoinSession:
		user, err := participantID(p.UserAddress)
		if err != nil {
			return err
		}
		role, ok := models.ParseRole(p.Role)
		if !ok {
			return fmt.Errorf("%w: unknown role %q", presence.ErrInvalidArgument, p.Role)
		}
		broadcasts, err := h.engine.Join(p.SessionID, user, role, c.id, now)
		h.Deliver(broadcasts...)
		if err != nil {
			return err
		}
		h.reply(c, models.OutboundMessage{
			Type:      models.MessageTypeJoinedSession,
			SessionID: p.SessionID,
			Timestamp: models.Millis(now),
		})
		return nil

	case models.MessageTypeLeaveSession:
		user, err := participantID(p.UserAddress)
		if err != nil {
			return err
		}
		if b, ok := h.engine.Leave(p.SessionID, user, now); ok {
			h.Deliver(b)
		}
		return nil

	case models.MessageTypeUserActivity:
		user, err := participantID(p.UserAddress)
		if err != nil {
			return err
		}
		b, err := h.engine.Activity(user, p.Activity, now)
		if err != nil {
			return err
		}
		h.Deliver(b)
		return nil

	case models.MessageTypeExecuteCommand:
		user, err := participantID(p.UserAddress)
		if err != nil {
			return err
		}
		b, err := h.engine.Command(user, p.Command, p.OutputText(), now)
		if err != nil {
			return err
		}
		h.Deliver(b)
		return nil

	case models.MessageTypeGetSessionState:
		state, err := h.engine.SessionState(p.SessionID)
		if err != nil {
			return err
		}
		h.reply(c, models.OutboundMessage{
			Type:      models.MessageTypeSessionState,
			Data:      state,
			SessionID: p.SessionID,
			Timestamp: models.Millis(now),
		})
		return nil

	default:
		return fmt.Errorf("%w: %s", presence.ErrUnknownMessageType, msgType)
	}
}

func participantID(userAddress string) (string, error) {
	id, err := address.Normalize(userAddress)
	if err != nil {
		return "", fmt.Errorf("%w: userAddress: %v", presence.ErrInvalidArgument, err)
	}
	return id, nil
}

func (h *Hub) reply(c *Client, msg models.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Error marshaling %s reply: %v", msg.Type, err)
		return
	}
	if !c.Send(data) {
		c.Close()
	}
}

func (h *Hub) observe(msgType models.MessageType, err error) {
	if h.observer == nil {
		return
	}
	if msgType != "invalid" && !knownType(msgType) {
		msgType = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.observer.ObserveMessage(msgType, outcome)
}

func knownType(t models.MessageType) bool {
	switch t {
	case models.MessageTypeJoinSession, models.MessageTypeLeaveSession,
		models.MessageTypeUserActivity, models.MessageTypeExecuteCommand,
		models.MessageTypeGetSessionState, models.MessageTypePing:
		return true
	}
	return false
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, ch := range h.engine.Channels() {
		ch.Close()
	}
	logger.Info("Gateway stopped")
}
