package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/mlmcore/pkg/domain/events"
	"github.com/amirasaad/mlmcore/pkg/eventbus"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

const defaultTopicPrefix = "mlm.events"

// KafkaEventBusConfig holds configuration for the Kafka event bus.
type KafkaEventBusConfig struct {
	GroupID      string
	TopicPrefix  string
	SASLUsername string
	SASLPassword string
}

// KafkaEventBus publishes events to one topic per event type and consumes them
// with a reader per registered type. Messages whose handlers fail go to a DLQ topic.
type KafkaEventBus struct {
	brokers []string
	writer  messageWriter
	dialer  *kafka.Dialer
	config  KafkaEventBusConfig
	logger  *slog.Logger

	handlersMtx sync.RWMutex
	handlers    map[events.EventType][]eventbus.HandlerFunc

	readersMtx sync.Mutex
	readers    map[events.EventType]*kafka.Reader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWithKafka creates a Kafka-backed event bus.
// brokers is a comma-separated list such as "localhost:9092,localhost:9093".
func NewWithKafka(brokers string, logger *slog.Logger, config KafkaEventBusConfig) (*KafkaEventBus, error) {
	parsed := parseBrokers(brokers)
	if len(parsed) == 0 {
		return nil, errors.New("kafka event bus: brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.GroupID == "" {
		config.GroupID = "mlmcore"
	}
	if strings.TrimSpace(config.TopicPrefix) == "" {
		config.TopicPrefix = defaultTopicPrefix
	}

	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	transport := &kafka.Transport{}
	if config.SASLUsername != "" || config.SASLPassword != "" {
		if config.SASLUsername == "" || config.SASLPassword == "" {
			return nil, errors.New("kafka event bus: sasl username and password are required")
		}
		mechanism := plain.Mechanism{Username: config.SASLUsername, Password: config.SASLPassword}
		dialer.SASLMechanism = mechanism
		transport.SASL = mechanism
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(parsed...),
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		Transport:              transport,
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &KafkaEventBus{
		brokers:  parsed,
		writer:   writer,
		dialer:   dialer,
		config:   config,
		logger:   logger.With("bus", "kafka"),
		handlers: make(map[events.EventType][]eventbus.HandlerFunc),
		readers:  make(map[events.EventType]*kafka.Reader),
		ctx:      ctx,
		cancel:   cancel,
	}

	conn, err := dialer.DialContext(ctx, "tcp", parsed[0])
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("kafka event bus: connection failed: %w", err)
	}
	_ = conn.Close()

	bus.logger.Info("Kafka event bus initialized",
		"group_id", config.GroupID,
		"brokers", parsed,
		"topic_prefix", config.TopicPrefix,
		"sasl_enabled", dialer.SASLMechanism != nil,
	)
	return bus, nil
}

// Close stops consumers and closes the writer.
func (b *KafkaEventBus) Close() error {
	if b == nil {
		return nil
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.readersMtx.Lock()
	for _, r := range b.readers {
		_ = r.Close()
	}
	b.readersMtx.Unlock()
	b.wg.Wait()
	if b.writer != nil {
		return b.writer.Close()
	}
	return nil
}

// Register registers a handler and starts a consumer for the event type.
func (b *KafkaEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.handlersMtx.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.handlersMtx.Unlock()

	b.ensureConsumer(eventType)
}

// Emit publishes an enveloped event to the topic of its type.
func (b *KafkaEventBus) Emit(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka event bus: marshal failed: %w", err)
	}
	envBytes, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return fmt.Errorf("kafka event bus: envelope marshal failed: %w", err)
	}
	msg := kafka.Message{
		Topic: topicNameFor(b.config.TopicPrefix, events.EventType(event.Type())),
		Key:   []byte(event.Type()),
		Value: envBytes,
		Time:  time.Now(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka event bus: publish failed: %w", err)
	}
	return nil
}

func (b *KafkaEventBus) ensureConsumer(eventType events.EventType) {
	b.readersMtx.Lock()
	defer b.readersMtx.Unlock()
	if b.ctx == nil {
		return
	}
	if _, exists := b.readers[eventType]; exists {
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		GroupID:     b.config.GroupID,
		Topic:       topicNameFor(b.config.TopicPrefix, eventType),
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      b.dialer,
	})
	b.readers[eventType] = reader

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(b.ctx, eventType, reader)
	}()
}

func (b *KafkaEventBus) consumeLoop(ctx context.Context, eventType events.EventType, reader *kafka.Reader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("kafka consume error", "error", err, "event_type", eventType)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		commit, procErr := b.processMessage(ctx, eventType, msg)
		if commit {
			if err := reader.CommitMessages(ctx, msg); err != nil {
				b.logger.Error("kafka commit error", "error", err, "topic", msg.Topic, "offset", msg.Offset)
			}
			continue
		}
		b.logger.Error("kafka message processing failed; will retry",
			"error", procErr, "topic", msg.Topic, "offset", msg.Offset)
		time.Sleep(500 * time.Millisecond)
	}
}

// processMessage decodes and dispatches one message.
// It reports whether the offset may be committed.
func (b *KafkaEventBus) processMessage(ctx context.Context, eventType events.EventType, msg kafka.Message) (bool, error) {
	evt, err := decodeMessage(eventType, msg.Value)
	if err != nil {
		b.logger.Error("dropping undecodable message", "error", err, "topic", msg.Topic, "offset", msg.Offset)
		return true, nil
	}

	b.handlersMtx.RLock()
	handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
	b.handlersMtx.RUnlock()
	if len(handlers) == 0 {
		b.logger.Warn("no handlers registered for event type", "event_type", eventType)
		return true, nil
	}

	failed := false
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			failed = true
			b.logger.Error("handler error", "error", err, "event_type", eventType, "offset", msg.Offset)
		}
	}
	if !failed {
		return true, nil
	}

	if err := b.publishToDLQ(ctx, eventType, msg.Value); err != nil {
		return false, err
	}
	return true, nil
}

// decodeMessage accepts either an envelope produced by Emit or a bare payload
// published by another service onto the type's topic.
func decodeMessage(eventType events.EventType, raw []byte) (events.Event, error) {
	constructor, ok := events.EventTypes[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	payload := raw
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Type != "" && len(env.Payload) > 0 {
		if events.EventType(env.Type) != eventType {
			return nil, fmt.Errorf("envelope type %q on %q topic", env.Type, eventType)
		}
		payload = env.Payload
	}
	evt := constructor()
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", eventType, err)
	}
	return evt, nil
}

func (b *KafkaEventBus) publishToDLQ(ctx context.Context, eventType events.EventType, raw []byte) error {
	dlqTopic := dlqTopicNameFor(b.config.TopicPrefix, eventType)
	err := b.writer.WriteMessages(ctx, kafka.Message{
		Topic: dlqTopic,
		Key:   []byte(eventType.String()),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka event bus: dlq publish failed: %w", err)
	}
	b.logger.Warn("message sent to DLQ", "event_type", eventType, "dlq_topic", dlqTopic)
	return nil
}

func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func topicNameFor(prefix string, eventType events.EventType) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, strings.ToLower(eventType.String()))
}

func dlqTopicNameFor(prefix string, eventType events.EventType) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return fmt.Sprintf("%s.dlq.%s", prefix, strings.ToLower(eventType.String()))
}

var _ eventbus.Bus = (*KafkaEventBus)(nil)
