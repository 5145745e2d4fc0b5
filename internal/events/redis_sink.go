package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"duet/internal/logger"
)

// RedisSink fans events out on a Redis pub/sub channel so that connected
// clients of both partners can refresh.
type RedisSink struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisSink connects to addr and verifies the connection
func NewRedisSink(log *logger.Logger, addr, channel string) (*RedisSink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSink(log, rdb, channel), nil
}

func newRedisSink(log *logger.Logger, rdb *goredis.Client, channel string) *RedisSink {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(channel) == "" {
		channel = "duet.events"
	}
	return &RedisSink{log: log.With("sink", "redis"), rdb: rdb, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

// Channel returns the per-couple channel an event is published on
func (s *RedisSink) Channel(coupleID int64) string {
	return fmt.Sprintf("%s.%d", s.channel, coupleID)
}

func (s *RedisSink) Deliver(ctx context.Context, e Event) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis sink not initialized")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.Channel(e.CoupleID), raw).Err()
}

func (s *RedisSink) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
