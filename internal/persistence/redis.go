// Package persistence implements the optional write-through document store
// described by the room manager's Adapter interface. Every call degrades
// gracefully: a disabled or unreachable store never blocks room lifecycle
// decisions, it only loses durability.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ridgelinegames/corehost/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// RoomSummaryPlayer is one roster entry within a RoomSummary.
type RoomSummaryPlayer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomSummary is the durable, non-authoritative projection of a Room.
// The live room state lives in memory; this is what survives a restart.
// The lobby listings read the live rooms, not these documents.
type RoomSummary struct {
	Code       string                 `json:"code"`
	Name       string                 `json:"name"`
	Mode       string                 `json:"mode"`
	Status     string                 `json:"status"`
	Public     bool                   `json:"public"`
	MaxPlayers int                    `json:"maxPlayers"`
	Players    []RoomSummaryPlayer    `json:"players"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// collectionKey names the single Redis hash standing in for a document
// collection, field-keyed by room code (one document per room).
const collectionKey = "rooms"
const collectionIndexKey = collectionKey + ":updated_at"

// Adapter is what room managers depend on. A nil *Service satisfies every
// method as a no-op, so persistence is safe to omit entirely.
type Adapter interface {
	SaveRoom(ctx context.Context, summary RoomSummary) error
	DeleteRoom(ctx context.Context, code string) error
	ListOpenRooms(ctx context.Context) ([]RoomSummary, error)
	CleanupStale(ctx context.Context, olderThan time.Duration) (int, error)
	Ping(ctx context.Context) error
}

// Service backs the Adapter with Redis, wrapped in a circuit breaker so a
// degraded store can't stall room operations.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, mainly for health checks.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService dials Redis and verifies connectivity before returning.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to persistence store: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "persistence",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("persistence").Set(stateVal)
		},
	}

	slog.Info("connected to persistence store", "addr", addr)
	return &Service{client: rdb, cb: gobreaker.NewCircuitBreaker(st)}, nil
}

// SaveRoom upserts a room's summary document. Called on create, join,
// leave, and status transitions for rooms worth surviving a restart.
func (s *Service) SaveRoom(ctx context.Context, summary RoomSummary) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("marshal room summary: %w", err)
		}
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, collectionKey, summary.Code, data)
		pipe.ZAdd(ctx, collectionIndexKey, redis.Z{
			Score:  float64(summary.UpdatedAt.Unix()),
			Member: summary.Code,
		})
		_, err = pipe.Exec(ctx)
		return nil, err
	})
	return s.swallow("save_room", err)
}

// DeleteRoom removes a room's document, called on teardown.
func (s *Service) DeleteRoom(ctx context.Context, code string) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		pipe := s.client.TxPipeline()
		pipe.HDel(ctx, collectionKey, code)
		pipe.ZRem(ctx, collectionIndexKey, code)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return s.swallow("delete_room", err)
}

// ListOpenRooms returns every persisted room summary. Callers fall back to
// their in-memory registry when the adapter is disabled or degraded.
func (s *Service) ListOpenRooms(ctx context.Context) ([]RoomSummary, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.HGetAll(ctx, collectionKey).Result()
	})
	if err := s.swallow("list_open_rooms", err); err != nil {
		return nil, err
	}
	raw, _ := res.(map[string]string)
	summaries := make([]RoomSummary, 0, len(raw))
	for _, v := range raw {
		var summary RoomSummary
		if err := json.Unmarshal([]byte(v), &summary); err != nil {
			slog.Warn("persistence: dropping unparsable room document", "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// CleanupStale deletes documents whose updatedAt predates the cutoff, used
// by the periodic garbage collector alongside the expired reconnect-token
// sweep.
func (s *Service) CleanupStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-olderThan)
	res, err := s.cb.Execute(func() (interface{}, error) {
		stale, err := s.client.ZRangeByScore(ctx, collectionIndexKey, &redis.ZRangeBy{
			Min: "-inf",
			Max: fmt.Sprintf("%d", cutoff.Unix()),
		}).Result()
		if err != nil || len(stale) == 0 {
			return 0, err
		}

		pipe := s.client.TxPipeline()
		pipe.HDel(ctx, collectionKey, stale...)
		pipe.ZRem(ctx, collectionIndexKey, toInterfaceSlice(stale)...)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return len(stale), nil
	})
	if err := s.swallow("cleanup_stale", err); err != nil {
		return 0, err
	}
	count, _ := res.(int)
	return count, nil
}

// Ping checks connectivity; used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close releases the underlying Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// swallow logs and absorbs store failures so callers never have to branch
// on persistence errors; it only surfaces a direct Ping failure.
func (s *Service) swallow(op string, err error) error {
	if err == nil {
		metrics.PersistenceOperations.WithLabelValues(op, "success").Inc()
		return nil
	}
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("persistence").Inc()
		metrics.PersistenceOperations.WithLabelValues(op, "circuit_open").Inc()
		slog.Warn("persistence circuit open, dropping operation", "op", op)
		return nil
	}
	metrics.PersistenceOperations.WithLabelValues(op, "error").Inc()
	slog.Error("persistence operation failed", "op", op, "error", err)
	return nil
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
