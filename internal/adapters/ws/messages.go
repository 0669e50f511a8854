package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"autolot-auction-engine/internal/domain/listing"
	"autolot-auction-engine/internal/domain/shared"
	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeJoinAuction  MessageType = "join_auction"
	MessageTypeLeaveAuction MessageType = "leave_auction"
	MessageTypePlaceBid     MessageType = "place_bid"
	MessageTypeGetListing   MessageType = "get_listing"
	MessageTypePing         MessageType = "ping"

	// Server to Client message types
	MessageTypeJoinedAuction    MessageType = "joined_auction"
	MessageTypeLeftAuction      MessageType = "left_auction"
	MessageTypeBidUpdate        MessageType = "bid_update"
	MessageTypeAuctionEnded     MessageType = "auction_ended"
	MessageTypeAuctionRestarted MessageType = "auction_restarted"
	MessageTypeParticipants     MessageType = "participant_update"
	MessageTypeListingState     MessageType = "listing_state"
	MessageTypeError            MessageType = "error"
	MessageTypePong             MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	ListingID *uuid.UUID             `json:"listing_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, listingID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		ListingID: listingID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewListingStateMessage builds a listing snapshot message
func NewListingStateMessage(l *listing.Listing) *ServerMessage {
	msg := NewServerMessage(MessageTypeListingState)
	msg.ListingID = &l.ID
	msg.Data["lot_number"] = l.LotNumber
	msg.Data["make"] = l.Make
	msg.Data["model"] = l.Model
	msg.Data["year"] = l.Year
	msg.Data["starting_price"] = l.StartingPrice
	msg.Data["current_bid"] = l.CurrentAmount()
	msg.Data["minimum_bid"] = l.MinAcceptableBid()
	msg.Data["status"] = string(l.Status)
	if l.AuctionEndTime != nil {
		msg.Data["end_time"] = l.AuctionEndTime.Format(time.RFC3339)
	}
	return msg
}

// EventToMessage converts a broadcast event to the wire message sent to
// every member of the listing's room
func EventToMessage(event outbound.Event) *ServerMessage {
	msg := &ServerMessage{
		ListingID: &event.ListingID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msg.Type = MessageTypeBidUpdate
	case outbound.EventTypeAuctionEnded:
		msg.Type = MessageTypeAuctionEnded
	case outbound.EventTypeAuctionRestarted:
		msg.Type = MessageTypeAuctionRestarted
	default:
		msg.Type = MessageTypeListingState
	}
	return msg
}

func (m *ClientMessage) validateListingID() error {
	if m.ListingID == nil || *m.ListingID == uuid.Nil {
		return shared.ErrListingIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeJoinAuction, MessageTypeLeaveAuction, MessageTypeGetListing:
		if err := m.validateListingID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateListingID(); err != nil {
			return err
		}
		amount, ok := m.Data["amount"].(float64)
		if !ok || amount <= 0 {
			return shared.ErrInvalidAmount
		}
	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
