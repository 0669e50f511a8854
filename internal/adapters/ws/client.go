package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autolot-auction-engine/internal/config"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WsClient struct {
	id         string
	userID     uuid.UUID
	conn       *websocket.Conn
	sendChan   chan *ServerMessage
	ctx        context.Context
	cancel     context.CancelFunc
	handler    *WsHandler
	workerPool *pond.WorkerPool
	stopped    bool
	lastSeen   time.Time
	mu         sync.Mutex
	logger     zerolog.Logger
}

type WsClientParams struct {
	UserID  uuid.UUID
	Conn    *websocket.Conn
	Handler *WsHandler
	Logger  zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		config.WSMaxWorkers,
		config.WSMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)
	id := uuid.New().String()
	return &WsClient{
		id:         id,
		userID:     params.UserID,
		conn:       params.Conn,
		sendChan:   make(chan *ServerMessage, 100), // buffered so a burst of room events does not block
		ctx:        ctx,
		cancel:     cancel,
		handler:    params.Handler,
		workerPool: pool,
		lastSeen:   time.Now(),
		logger:     params.Logger.With().Str("client_id", id).Str("user_id", params.UserID.String()).Logger(),
	}
}

func (c *WsClient) Start() {
	go c.messageSender()
	go c.messageReceiver()
}

func (c *WsClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Prevent double closing
	if c.stopped {
		return
	}
	c.stopped = true

	c.cancel()
	c.conn.Close()
	close(c.sendChan)

	if c.workerPool != nil {
		c.workerPool.Stop()
	}
}

// LastSeen returns the time of the last message received from this client
func (c *WsClient) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *WsClient) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// Send sends a message to the client
func (c *WsClient) Send(msg *ServerMessage) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("client is stopped")
	}
	c.mu.Unlock()

	select {
	case c.sendChan <- msg:
		return nil
	default:
		// Channel is full, try to send with a timeout
		select {
		case c.sendChan <- msg:
			return nil
		case <-time.After(100 * time.Millisecond):
			return fmt.Errorf("client send channel is full")
		}
	}
}

func (c *WsClient) messageSender() {
	for {
		select {
		case msg := <-c.sendChan:
			if err := c.sendMessage(msg); err != nil {
				c.logger.Error().Err(err).Msg("Failed to send message to client")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *WsClient) messageReceiver() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Error().Err(err).Msg("WebSocket read error for client")
				} else {
					c.logger.Info().Str("error", err.Error()).Msg("WebSocket connection closed for client")
				}
				// Cancel context to notify handler about disconnection
				c.cancel()
				return
			}
			c.touch()

			c.workerPool.Submit(func() {
				if err := c.handleMessage(message); err != nil {
					c.logger.Error().Err(err).Msg("Failed to handle message in worker pool")
					errorMsg := NewErrorMessage(err.Error(), nil)
					c.sendMessage(errorMsg)
				}
			})
		}
	}
}

func (c *WsClient) sendMessage(msg *ServerMessage) error {
	return c.conn.WriteJSON(msg)
}

func (c *WsClient) handleMessage(data []byte) error {
	msg, err := ParseClientMessage(data)
	if err != nil {
		return fmt.Errorf("invalid message format: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return fmt.Errorf("message validation failed: %w", err)
	}

	if msg.Type == MessageTypePing {
		return c.Send(NewServerMessage(MessageTypePong))
	}

	if c.handler != nil {
		return c.handler.HandleClientMessage(c, msg)
	}
	return fmt.Errorf("handler not available")
}
