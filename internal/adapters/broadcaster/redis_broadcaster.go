package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"autolot-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster implements the broadcaster interface using Redis
// pub/sub, one channel per listing room. The gateway subscribes a room once
// and fans events out to its own connected clients.
type RedisBroadcaster struct {
	client  *redis.Client
	pubsubs map[uuid.UUID]*redis.PubSub // listingID -> pubsub instance
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewBroadcaster creates a new redis broadcaster
func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:  params.RedisClient,
		pubsubs: make(map[uuid.UUID]*redis.PubSub),
		ctx:     ctx,
		cancel:  cancel,
		logger:  params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

func channelName(listingID uuid.UUID) string {
	return fmt.Sprintf("listing:%s", listingID.String())
}

// Subscribe routes the listing's events to eventChan until Unsubscribe
func (r *RedisBroadcaster) Subscribe(ctx context.Context, listingID uuid.UUID, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pubsubs[listingID]; exists {
		r.logger.Debug().Str("listing_id", listingID.String()).Msg("Room already subscribed")
		return nil
	}

	pubsub := r.client.Subscribe(ctx, channelName(listingID))
	r.pubsubs[listingID] = pubsub

	go r.listenForRedisMessages(pubsub, listingID, eventChan)

	r.logger.Info().Str("listing_id", listingID.String()).Msg("Subscribed to listing room via Redis")
	return nil
}

// Unsubscribe stops routing the listing's events
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, listingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pubsub, exists := r.pubsubs[listingID]
	if !exists {
		return nil
	}

	if err := pubsub.Close(); err != nil {
		r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Error closing Redis pubsub for room")
	}
	delete(r.pubsubs, listingID)

	r.logger.Info().Str("listing_id", listingID.String()).Msg("Unsubscribed from listing room")
	return nil
}

// Publish publishes an event to all subscribers of the listing via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, listingID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName(listingID), eventJSON)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("listing_id", listingID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to listing room")

	return nil
}

// listenForRedisMessages forwards Redis messages to the room's local channel
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, listingID uuid.UUID, localChan chan outbound.Event) {
	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("listing_id", listingID.String()).Msg("Redis channel closed for room")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Failed to unmarshal Redis message for room")
				continue
			}

			select {
			case localChan <- event:
			default:
				r.logger.Warn().Str("listing_id", listingID.String()).Msg("Room channel full, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

// Close tears down all subscriptions
func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for listingID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("Error closing Redis pubsub for room")
		}
		delete(r.pubsubs, listingID)
	}

	return nil
}
