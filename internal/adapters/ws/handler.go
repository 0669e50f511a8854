package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/inbound"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	heartbeatInterval = 30 * time.Second
	clientIdleTimeout = 60 * time.Second
)

// room is one listing's auction room on this node. The room owns the
// single broadcaster subscription for its listing and fans events out to
// every connected member.
type room struct {
	listingID uuid.UUID
	clients   map[string]*WsClient
	eventChan chan outbound.Event
	done      chan struct{}
}

// WsHandler manages WebSocket connections and the per-listing rooms
type WsHandler struct {
	clients      map[string]*WsClient // clientID -> client
	clientsMu    sync.RWMutex
	rooms        map[uuid.UUID]*room            // listingID -> room
	memberships  map[string]map[uuid.UUID]bool  // clientID -> joined listings
	roomsMu      sync.Mutex
	upgrader     websocket.Upgrader
	bidService   inbound.BidService
	queryService inbound.ListingQueryService
	broadcaster  outbound.Broadcaster
	logger       zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader     websocket.Upgrader
	BidService   inbound.BidService
	QueryService inbound.ListingQueryService
	Broadcaster  outbound.Broadcaster
	Logger       zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:      make(map[string]*WsClient),
		rooms:        make(map[uuid.UUID]*room),
		memberships:  make(map[string]map[uuid.UUID]bool),
		upgrader:     params.Upgrader,
		bidService:   params.BidService,
		queryService: params.QueryService,
		broadcaster:  params.Broadcaster,
		logger:       params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: h,
		Logger:  h.logger,
	})

	h.registerClient(client)
	client.Start()

	// Wait for client to disconnect
	go func() {
		<-client.ctx.Done()
		h.unregisterClient(client)
	}()

	h.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

// RunHeartbeat prunes clients that stopped pinging. Blocks until ctx is done.
func (h *WsHandler) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.pruneIdleClients()
		case <-ctx.Done():
			return
		}
	}
}

func (h *WsHandler) pruneIdleClients() {
	cutoff := time.Now().Add(-clientIdleTimeout)

	h.clientsMu.RLock()
	var idle []*WsClient
	for _, client := range h.clients {
		if client.LastSeen().Before(cutoff) {
			idle = append(idle, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range idle {
		h.logger.Info().Str("client_id", client.id).Msg("Pruning idle WebSocket client")
		h.unregisterClient(client)
	}
}

func (h *WsHandler) registerClient(client *WsClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[client.id] = client
	h.logger.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("Client registered")
}

func (h *WsHandler) unregisterClient(client *WsClient) {
	h.clientsMu.Lock()
	if _, exists := h.clients[client.id]; !exists {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, client.id)
	h.clientsMu.Unlock()

	// Leave every joined room so empty rooms release their subscription
	h.roomsMu.Lock()
	joined := h.memberships[client.id]
	delete(h.memberships, client.id)
	counts := make(map[uuid.UUID]int)
	for listingID := range joined {
		counts[listingID] = h.removeFromRoomLocked(client, listingID)
	}
	h.roomsMu.Unlock()

	for listingID, count := range counts {
		h.broadcastParticipants(listingID, count)
	}

	client.Stop()

	h.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client disconnected")
}

// HandleClientMessage routes a validated message to its handler
func (h *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeJoinAuction:
		return h.handleJoin(client, msg)

	case MessageTypeLeaveAuction:
		return h.handleLeave(client, msg)

	case MessageTypePlaceBid:
		return h.handlePlaceBid(client, msg)

	case MessageTypeGetListing:
		return h.handleGetListing(client, msg)

	default:
		h.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

// GetConnectedClients returns the number of connected clients
func (h *WsHandler) GetConnectedClients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *WsHandler) handleJoin(client *WsClient, msg *ClientMessage) error {
	listingID := *msg.ListingID

	count, err := h.joinRoom(client, listingID)
	if err != nil {
		h.logger.Error().Err(err).Str("client_id", client.id).Str("listing_id", listingID.String()).Msg("Failed to join auction room")
		return err
	}

	response := NewServerMessage(MessageTypeJoinedAuction)
	response.ListingID = &listingID
	response.Data["participant_count"] = count

	// Include the current listing snapshot so the client renders without a
	// second round trip
	if l, err := h.queryService.GetListing(context.Background(), listingID); err == nil {
		response.Data["listing"] = NewListingStateMessage(l).Data
	}

	h.logger.Info().Str("client_id", client.id).Str("listing_id", listingID.String()).Int("participants", count).Msg("Client joined auction room")

	if err := client.Send(response); err != nil {
		return err
	}
	h.broadcastParticipants(listingID, count)
	return nil
}

func (h *WsHandler) handleLeave(client *WsClient, msg *ClientMessage) error {
	listingID := *msg.ListingID

	h.roomsMu.Lock()
	if joined := h.memberships[client.id]; joined != nil {
		delete(joined, listingID)
	}
	count := h.removeFromRoomLocked(client, listingID)
	h.roomsMu.Unlock()

	response := NewServerMessage(MessageTypeLeftAuction)
	response.ListingID = &listingID

	h.logger.Info().Str("client_id", client.id).Str("listing_id", listingID.String()).Msg("Client left auction room")

	if err := client.Send(response); err != nil {
		return err
	}
	h.broadcastParticipants(listingID, count)
	return nil
}

func (h *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, ok := msg.Data["amount"].(float64)
	if !ok {
		return shared.ErrInvalidAmount
	}

	req := inbound.PlaceBidRequest{
		ListingID: *msg.ListingID,
		BidderID:  client.userID,
		Amount:    amount,
	}

	b, err := h.bidService.PlaceBid(context.Background(), req)
	if err != nil {
		// The bidder alone sees the rejection; the room only ever sees
		// committed bids
		errorMsg := NewErrorMessage(err.Error(), msg.ListingID)
		return client.Send(errorMsg)
	}

	h.logger.Info().
		Str("bid_id", b.ID.String()).
		Str("listing_id", msg.ListingID.String()).
		Str("user_id", client.userID.String()).
		Float64("amount", amount).
		Msg("Bid placed successfully")

	return nil
}

func (h *WsHandler) handleGetListing(client *WsClient, msg *ClientMessage) error {
	l, err := h.queryService.GetListing(context.Background(), *msg.ListingID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.ListingID)
		return client.Send(errorMsg)
	}
	return client.Send(NewListingStateMessage(l))
}

// joinRoom adds the client to the listing's room, creating the room and its
// broadcaster subscription on first join. Returns the new member count.
func (h *WsHandler) joinRoom(client *WsClient, listingID uuid.UUID) (int, error) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	r, exists := h.rooms[listingID]
	if !exists {
		eventChan := make(chan outbound.Event, 100)
		if err := h.broadcaster.Subscribe(context.Background(), listingID, eventChan); err != nil {
			return 0, err
		}
		r = &room{
			listingID: listingID,
			clients:   make(map[string]*WsClient),
			eventChan: eventChan,
			done:      make(chan struct{}),
		}
		h.rooms[listingID] = r
		go h.pumpRoom(r)
		h.logger.Debug().Str("listing_id", listingID.String()).Msg("Auction room opened")
	}

	r.clients[client.id] = client
	if h.memberships[client.id] == nil {
		h.memberships[client.id] = make(map[uuid.UUID]bool)
	}
	h.memberships[client.id][listingID] = true

	return len(r.clients), nil
}

// removeFromRoomLocked removes the client from the room and tears the room
// down when it empties. Caller holds roomsMu. Returns the remaining count.
func (h *WsHandler) removeFromRoomLocked(client *WsClient, listingID uuid.UUID) int {
	r, exists := h.rooms[listingID]
	if !exists {
		return 0
	}

	delete(r.clients, client.id)
	if len(r.clients) > 0 {
		return len(r.clients)
	}

	delete(h.rooms, listingID)
	close(r.done)
	if err := h.broadcaster.Unsubscribe(context.Background(), listingID); err != nil {
		h.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to unsubscribe empty auction room")
	}
	h.logger.Debug().Str("listing_id", listingID.String()).Msg("Auction room closed")
	return 0
}

// pumpRoom forwards the room's broadcast events to every member
func (h *WsHandler) pumpRoom(r *room) {
	for {
		select {
		case event := <-r.eventChan:
			msg := EventToMessage(event)
			for _, client := range h.roomMembers(r.listingID) {
				if err := client.Send(msg); err != nil {
					h.logger.Error().Err(err).Str("client_id", client.id).Str("listing_id", r.listingID.String()).Msg("Failed to send event to room member")
				}
			}
		case <-r.done:
			return
		}
	}
}

func (h *WsHandler) roomMembers(listingID uuid.UUID) []*WsClient {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	r, exists := h.rooms[listingID]
	if !exists {
		return nil
	}
	members := make([]*WsClient, 0, len(r.clients))
	for _, client := range r.clients {
		members = append(members, client)
	}
	return members
}

func (h *WsHandler) broadcastParticipants(listingID uuid.UUID, count int) {
	msg := NewServerMessage(MessageTypeParticipants)
	msg.ListingID = &listingID
	msg.Data["participant_count"] = count

	for _, client := range h.roomMembers(listingID) {
		if err := client.Send(msg); err != nil {
			h.logger.Debug().Err(err).Str("client_id", client.id).Msg("Failed to send participant update")
		}
	}
}
