package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// CodecHeader is the message header carrying the codec name. The consuming side
// uses it to select the same adapter the record was encoded with.
const CodecHeader = `codec`

// ProducerConfig holds the configuration for a Producer
type ProducerConfig struct {
	Brokers []string
	Topic   string

	// RequiredAcks before a write is considered complete (kafka semantics).
	// Zero leaves the kafka-go default, which waits for all replicas (-1).
	RequiredAcks int

	MaxAttempts  int
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	Async        bool

	Logger log.Logger
}

// Producer publishes records to a kafka topic, encoding each record with the codec
// it names.
type Producer struct {
	writer *kafka.Writer
	logger log.Logger
}

// NewProducer creates a Producer for the given configuration
func NewProducer(config ProducerConfig) (*Producer, error) {
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
	logger = logger.NewLog(log.Prefixed(`Producer`))

	writerConfig := kafka.WriterConfig{
		Brokers:  config.Brokers,
		Topic:    config.Topic,
		Balancer: &kafka.LeastBytes{},
		Async:    config.Async,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}

	if config.RequiredAcks != 0 {
		writerConfig.RequiredAcks = config.RequiredAcks
	}
	if config.MaxAttempts != 0 {
		writerConfig.MaxAttempts = config.MaxAttempts
	}
	if config.WriteTimeout != 0 {
		writerConfig.WriteTimeout = config.WriteTimeout
	}
	if config.BatchTimeout != 0 {
		writerConfig.BatchTimeout = config.BatchTimeout
	}

	return &Producer{
		writer: kafka.NewWriter(writerConfig),
		logger: logger,
	}, nil
}

// Produce encodes the given records and publishes them to the configured topic
func (p *Producer) Produce(ctx context.Context, records ...Record) error {
	messages := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		message, err := buildMessage(record)
		if err != nil {
			return err
		}

		messages = append(messages, message)
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return errors.WithPrevious(err, `message write failed`)
	}

	p.logger.Debug(fmt.Sprintf(`%d message/s published`, len(messages)))

	return nil
}

// Close flushes pending writes and releases the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// buildMessage encodes the record with its named codec and stamps the codec name
// on the message headers
func buildMessage(record Record) (kafka.Message, error) {
	value, err := MarshalRecord(record)
	if err != nil {
		return kafka.Message{}, errors.WithPrevious(err, fmt.Sprintf(`record encode failed for codec [%s]`, record.Codec()))
	}

	message := kafka.Message{
		Value: value,
		Headers: []kafka.Header{
			{Key: CodecHeader, Value: []byte(record.Codec())},
		},
	}

	if keyed, ok := record.(Keyed); ok {
		message.Key = keyed.Key()
	}

	return message, nil
}
