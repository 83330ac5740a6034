package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

// deletePattern is the message pattern API instances listen for.
const deletePattern = "deleteCacheKeys"

// packet is the pub/sub envelope understood by the API fleet.
type packet struct {
	Pattern string   `json:"pattern"`
	Data    []string `json:"data"`
}

// Publisher broadcasts cache invalidations to the fleet.
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Publish sends keys in a single message. An empty key set is not sent.
func (p *Publisher) Publish(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	payload, err := json.Marshal(packet{Pattern: deletePattern, Data: keys})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		common.InvalidationBroadcasts.WithLabelValues("error").Inc()

		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	common.InvalidationBroadcasts.WithLabelValues("success").Inc()

	return nil
}

// Subscriber evicts broadcast keys from the local cache.
type Subscriber struct {
	log     logrus.FieldLogger
	client  *redis.Client
	channel string
	local   *Local

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

func NewSubscriber(log logrus.FieldLogger, client *redis.Client, channel string, local *Local) *Subscriber {
	return &Subscriber{
		log:     log.WithField("component", "cache/subscriber"),
		client:  client,
		channel: channel,
		local:   local,
	}
}

// Start subscribes and returns once the subscription is confirmed.
func (s *Subscriber) Start(ctx context.Context) error {
	s.pubsub = s.client.Subscribe(ctx, s.channel)

	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()

		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	ch := s.pubsub.Channel()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		for msg := range ch {
			s.handle(msg.Payload)
		}
	}()

	s.log.WithField("channel", s.channel).Info("Subscribed to cache invalidations")

	return nil
}

func (s *Subscriber) Stop() error {
	if s.pubsub == nil {
		return nil
	}

	err := s.pubsub.Close()

	s.wg.Wait()

	return err
}

func (s *Subscriber) handle(payload string) {
	var p packet

	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		s.log.WithError(err).Warn("Ignoring malformed invalidation message")

		return
	}

	if p.Pattern != deletePattern {
		return
	}

	removed := s.local.Delete(p.Data...)

	common.InvalidationsReceived.Inc()

	s.log.WithFields(logrus.Fields{
		"keys":    len(p.Data),
		"removed": removed,
	}).Debug("Applied cache invalidation")
}
