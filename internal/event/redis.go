package event

import (
	"context"
	"encoding/json"
	"time"

	"golang-autotrader/internal/dto"
	"golang-autotrader/pkg/logger"
	"golang-autotrader/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const streamMaxLen int64 = 10000

// RedisSink publishes each event on a pub/sub channel for live consumers and
// appends it to a capped stream for consumers that were offline.
type RedisSink struct {
	rdb     *redis.Client
	channel string
	stream  string
	timeout time.Duration
	log     *logger.Logger
}

func NewRedisSink(rdb *redis.Client, channel, stream string, log *logger.Logger) *RedisSink {
	return &RedisSink{
		rdb:     rdb,
		channel: channel,
		stream:  stream,
		timeout: 5 * time.Second,
		log:     log,
	}
}

func (s *RedisSink) Publish(ctx context.Context, event dto.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to encode event", logger.ErrorField(err))
		return
	}

	utils.GoSafe(func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if s.channel != "" {
			if err := s.rdb.Publish(pubCtx, s.channel, payload).Err(); err != nil {
				s.log.Warn("Failed to publish event to redis channel",
					logger.StringField("channel", s.channel), logger.ErrorField(err))
			}
		}
		if s.stream != "" {
			err := s.rdb.XAdd(pubCtx, &redis.XAddArgs{
				Stream: s.stream,
				MaxLen: streamMaxLen,
				Approx: true,
				Values: map[string]interface{}{
					"type":    string(event.Type),
					"payload": payload,
				},
			}).Err()
			if err != nil {
				s.log.Warn("Failed to append event to redis stream",
					logger.StringField("stream", s.stream), logger.ErrorField(err))
			}
		}
	})
}
