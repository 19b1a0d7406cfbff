package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// ConsumerConfig holds the configuration for a Consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// DefaultCodec decodes messages which carry no codec header
	DefaultCodec string

	StartOffset int64
	MinBytes    int
	MaxBytes    int
	MaxWait     time.Duration

	Logger log.Logger
}

// Event is a consumed and decoded message
type Event struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     interface{}
	Codec     string
	Time      time.Time
}

// Consumer reads messages from a kafka topic and decodes them with the codec named
// on the message header, falling back to the configured default codec.
type Consumer struct {
	reader       *kafka.Reader
	defaultCodec string
	logger       log.Logger
}

// NewConsumer creates a Consumer for the given configuration
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New(`at least one broker is required`)
	}

	if config.Topic == `` {
		return nil, errors.New(`topic is required`)
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	logger = logger.NewLog(log.Prefixed(`Consumer`))

	if config.MinBytes == 0 {
		config.MinBytes = 1
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 10e6
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:  config.Brokers,
		Topic:    config.Topic,
		GroupID:  config.GroupID,
		MinBytes: config.MinBytes,
		MaxBytes: config.MaxBytes,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	if config.MaxWait != 0 {
		readerConfig.MaxWait = config.MaxWait
	}

	// StartOffset only applies to group readers, standalone readers seek explicitly
	if config.GroupID != `` {
		startOffset := config.StartOffset
		if startOffset == 0 {
			startOffset = kafka.FirstOffset
		}
		readerConfig.StartOffset = startOffset
	}

	reader := kafka.NewReader(readerConfig)

	if config.GroupID == `` && config.StartOffset != 0 {
		if err := reader.SetOffset(config.StartOffset); err != nil {
			return nil, errors.WithPrevious(err, `start offset seek failed`)
		}
	}

	return &Consumer{
		reader:       reader,
		defaultCodec: config.DefaultCodec,
		logger:       logger,
	}, nil
}

// Consume blocks until the next message arrives and returns it decoded
func (c *Consumer) Consume(ctx context.Context) (*Event, error) {
	message, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, errors.WithPrevious(err, `message read failed`)
	}

	event, err := c.decodeMessage(message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(fmt.Sprintf(`message consumed from [%s][%d]@%d`, event.Topic, event.Partition, event.Offset))

	return event, nil
}

// Close releases the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) decodeMessage(message kafka.Message) (*Event, error) {
	name := c.defaultCodec
	for _, header := range message.Headers {
		if header.Key == CodecHeader {
			name = string(header.Value)
			break
		}
	}

	if name == `` {
		return nil, errors.New(`message has no codec header and no default codec is configured`)
	}

	value, err := UnmarshalRecord(name, message.Value)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`record decode failed for codec [%s]`, name))
	}

	return &Event{
		Topic:     message.Topic,
		Partition: message.Partition,
		Offset:    message.Offset,
		Key:       message.Key,
		Value:     value,
		Codec:     name,
		Time:      message.Time,
	}, nil
}
