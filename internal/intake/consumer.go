package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
)

// Consumer feeds a Kafka topic into a MessageHandler through a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewConsumer joins the configured consumer group.
func NewConsumer(cfg config.Kafka, handler MessageHandler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka intake requires at least one broker")
	}
	if handler == nil {
		return nil, errors.New("kafka intake requires a message handler")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.ClientID = "reelsmith"
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return newConsumer(group, cfg.Topic, cfg.GroupID, handler, logger), nil
}

func newConsumer(group sarama.ConsumerGroup, topic, groupID string, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		group:   group,
		handler: handler,
		topic:   topic,
		groupID: groupID,
		logger:  logging.NewComponentLogger(logger, "kafka-intake"),
	}
}

// Start begins consuming in the background and returns once the first
// session is set up or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	ready := make(chan struct{})
	handler := &groupHandler{consumer: c, ready: ready}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
					return
				}
				logging.WarnWithContext(c.logger, "kafka consume failed", "kafka_consume_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check broker connectivity"),
					logging.String(logging.FieldImpact, "queued requests are delayed"),
				)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			logging.WarnWithContext(c.logger, "kafka consumer error", "kafka_consumer_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "queued requests may be delayed"),
			)
		}
	}()

	select {
	case <-ready:
		c.logger.Info("kafka intake started",
			logging.String("group", c.groupID),
			logging.String("topic", c.topic),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the consumer group and waits for the background loops.
func (c *Consumer) Close() error {
	if c == nil || c.group == nil {
		return nil
	}
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	consumer *Consumer
	ready    chan struct{}
	once     sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim runs requests from one partition sequentially.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.consumer.logger.Debug("received request",
				logging.String("topic", message.Topic),
				logging.Int("partition", int(message.Partition)),
				logging.Int64("offset", message.Offset),
			)
			shouldMark, err := h.consumer.handler.HandleMessage(session.Context(), message.Key, message.Value)
			if err != nil && !shouldMark {
				h.consumer.logger.Info("request left for redelivery",
					logging.Int64("offset", message.Offset),
					logging.Error(err),
				)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}
