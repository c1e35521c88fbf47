package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"canvas-studio/internal/models"

	"github.com/redis/go-redis/v9"
)

/*
LEARNING: ROOM STORAGE

A room's shared document is a single string (the serialized element list).
Two implementations:

  memory → one server instance, lost on restart
  redis  → GET/SET room:{id}:canvasElements, and room messages are fanned
           out on the room-events channel so every instance can relay them
           to its own connections
*/

// RoomEventsChannel is the redis pub/sub channel shared by all instances
const RoomEventsChannel = "room-events"

// MemoryRoomStoreImpl keeps room documents in process memory
type MemoryRoomStoreImpl struct {
	mu    sync.RWMutex
	rooms map[string]string
}

func NewMemoryRoomStore() *MemoryRoomStoreImpl {
	return &MemoryRoomStoreImpl{rooms: make(map[string]string)}
}

// Get returns the room document, or the empty list for a new room
func (s *MemoryRoomStoreImpl) Get(ctx context.Context, room string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.rooms[room]; ok {
		return v, nil
	}
	return models.EmptyStorage, nil
}

func (s *MemoryRoomStoreImpl) Set(ctx context.Context, room, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[room] = value
	return nil
}

// RedisRoomStoreImpl shares room documents and events between instances
type RedisRoomStoreImpl struct {
	client *redis.Client
}

func NewRedisRoomStore(client *redis.Client) *RedisRoomStoreImpl {
	return &RedisRoomStoreImpl{client: client}
}

func roomKey(room string) string {
	return "room:" + room + ":canvasElements"
}

func (s *RedisRoomStoreImpl) Get(ctx context.Context, room string) (string, error) {
	v, err := s.client.Get(ctx, roomKey(room)).Result()
	if errors.Is(err, redis.Nil) {
		return models.EmptyStorage, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get room %s: %w", room, err)
	}
	return v, nil
}

func (s *RedisRoomStoreImpl) Set(ctx context.Context, room, value string) error {
	if err := s.client.Set(ctx, roomKey(room), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room %s: %w", room, err)
	}
	return nil
}

// Publish sends a room event to every subscribed instance, this one included
func (s *RedisRoomStoreImpl) Publish(ctx context.Context, evt models.RoomEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode room event: %w", err)
	}
	if err := s.client.Publish(ctx, RoomEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish room event: %w", err)
	}
	return nil
}

// Subscribe streams room events until ctx is done
func (s *RedisRoomStoreImpl) Subscribe(ctx context.Context) (<-chan models.RoomEvent, error) {
	sub := s.client.Subscribe(ctx, RoomEventsChannel)

	// Wait for confirmation so no event published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", RoomEventsChannel, err)
	}

	out := make(chan models.RoomEvent, 256)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt models.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("⚠️  Dropping malformed room event: %v", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
