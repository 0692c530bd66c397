package storage

import (
	"encoding/json"

	"dormpool/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Change events travel over Redis pub/sub, one channel per topic under a
// shared prefix so the sync hub can pattern-subscribe to all of them.
const eventChannelPrefix = "events:"

// PublishEvent publishes a committed change on the topic's channel.
// Call it only after the transaction that produced the change committed;
// events for rolled-back work would desynchronize every subscriber.
func (s *Service) PublishEvent(ev models.ChangeEvent) error {
	if s.Redis == nil {
		// the operator CLI runs without redis, subscribers re-fetch
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventChannelPrefix+ev.Topic, payload).Err()
}

// SubscribeEvents pattern-subscribes to every event channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, eventChannelPrefix+"*")
}
