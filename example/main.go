package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tryfix/log"

	"github.com/fluxstream/schemaregistry"
	"github.com/fluxstream/schemaregistry/kafka"
)

// User is the message model. Codec names the registered encode/decode strategy and
// Key provides the kafka partition key.
type User struct {
	Name  string `avro:"name"`
	Email string `avro:"email"`
}

func (User) Codec() string {
	return `avro_users`
}

func (u User) Key() []byte {
	return []byte(u.Email)
}

func main() {
	logger := log.NewLog().Log(log.WithLevel(log.INFO))

	// Init a new schema registry instance and connect
	registry, err := schemaregistry.NewRegistry(`http://localhost:8081`,
		schemaregistry.WithLogger(logger),
		schemaregistry.WithBackgroundSync(5*time.Second),
		schemaregistry.WithStorageTopicSync([]string{`localhost:9092`}, `_schemas`),
	)
	if err != nil {
		log.Fatal(err)
	}

	if err := registry.Register(`users-value`, schemaregistry.VersionLatest, func(unmarshaler schemaregistry.Unmarshaler) (interface{}, error) {
		user := User{}
		if err := unmarshaler.Unmarshal(&user); err != nil {
			return nil, err
		}

		return user, nil
	}); err != nil {
		log.Fatal(err)
	}

	// Start background sync to detect new versions
	if err := registry.Sync(); err != nil {
		log.Fatal(err)
	}
	defer registry.Close()

	// Bind the subject encoder to a named codec consumable by producers/consumers
	kafka.MustRegisterCodec(kafka.NewSchemaCodec(`avro_users`, registry.WithLatestSchema(`users-value`)))

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: []string{`localhost:9092`},
		Topic:   `users`,
		Logger:  logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer producer.Close()

	if err := producer.Produce(context.Background(), User{Name: `Jane`, Email: `jane@example.com`}); err != nil {
		log.Fatal(err)
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:      []string{`localhost:9092`},
		Topic:        `users`,
		GroupID:      `example`,
		DefaultCodec: `avro_users`,
		Logger:       logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer consumer.Close()

	event, err := consumer.Consume(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	logger.Info(fmt.Sprintf(`user received %+v`, event.Value))
}
