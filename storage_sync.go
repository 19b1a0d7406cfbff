package schemaregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/riferrei/srclient"
	"github.com/segmentio/kafka-go"
	"github.com/tryfix/log"
)

// storageSync follows the registry's kafka storage topic and applies SCHEMA events
// to the local registry as they are committed.
type storageSync struct {
	bootstrapServers []string
	storageTopic     string
	registry         *Registry
	reader           *kafka.Reader
	logger           log.Logger
	stopOnce         sync.Once
}

type schemaKey struct {
	Subject string `json:"subject"`
	Keytype string `json:"keytype"`
	Version int    `json:"version"`
}

type schemaValue struct {
	Subject    string `json:"subject"`
	Version    int    `json:"version"`
	Id         int    `json:"id"`
	Schema     string `json:"schema"`
	SchemaType string `json:"schemaType"`
	Deleted    bool   `json:"deleted"`
}

func newStorageSync(bootstrapServers []string, storageTopic string, registry *Registry) *storageSync {
	return &storageSync{
		bootstrapServers: bootstrapServers,
		storageTopic:     storageTopic,
		registry:         registry,
		logger:           registry.logger.NewLog(log.Prefixed(`StorageSync`)),
	}
}

func (s *storageSync) start() error {
	s.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:   s.bootstrapServers,
		Topic:     s.storageTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			s.logger.Error(fmt.Sprintf(msg, args...))
		}),
	})

	// the schemas topic is a compacted log, always replay it from the beginning
	if err := s.reader.SetOffset(kafka.FirstOffset); err != nil {
		return err
	}

	go s.consume()

	s.logger.Info(`storage topic sync started`)

	return nil
}

// stop closes the reader which unblocks the consume goroutine
func (s *storageSync) stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.reader.Close()
	})

	return err
}

func (s *storageSync) consume() {
	for {
		message, err := s.reader.ReadMessage(context.Background())
		if err != nil {
			// a closed reader surfaces as io.EOF
			if errors.Is(err, io.EOF) {
				s.logger.Info(`storage topic sync stopped`)
				return
			}

			s.logger.Error(fmt.Sprintf(`storage topic consume failed due to %s`, err.Error()))
			return
		}

		s.apply(message.Key, message.Value)
	}
}

func (s *storageSync) apply(keyByt, valByt []byte) {
	// empty keys and values (eg: NOOP markers, tombstones) have to be ignored
	if len(keyByt) < 1 || len(valByt) < 1 {
		return
	}

	key := schemaKey{}
	if err := json.Unmarshal(keyByt, &key); err != nil {
		s.logger.Error(fmt.Sprintf(`key unmarshal failed due to %+v`, err))
		return
	}

	// we only need schemas
	if key.Keytype != `SCHEMA` {
		return
	}

	value := schemaValue{}
	if err := json.Unmarshal(valByt, &value); err != nil {
		s.logger.Error(fmt.Sprintf(`value unmarshal failed due to %+v`, err))
		return
	}

	if value.Subject == `` || value.Deleted {
		return
	}

	// if the subject is not registered ignore (we don't need the entire registry here)
	if !s.registry.subjectRegistered(value.Subject) {
		return
	}

	if s.registry.hasVersion(value.Subject, Version(value.Version)) {
		return
	}

	// new versions reuse the previously registered unmarshaler (assumption is the new
	// version is always compatible with the old one)
	fn := s.registry.getUnmarshalerFunc(value.Subject)
	if fn == nil {
		// subject was registered as encode only
		return
	}

	typ := srclient.SchemaType(value.SchemaType)
	if value.SchemaType == `` {
		typ = srclient.Avro
	}

	subject := &Subject{
		Subject:         value.Subject,
		Version:         Version(value.Version),
		Schema:          value.Schema,
		Id:              value.Id,
		UnmarshalerFunc: fn,
	}

	if err := s.registry.addSubject(subject, typ); err != nil {
		s.logger.Error(fmt.Sprintf(`new schema add failed. [%s:%d] due to %s`,
			value.Subject, value.Version, err.Error()))
		return
	}

	s.logger.Info(fmt.Sprintf(`new schema registered. %s:%d`, value.Subject, value.Version))
	s.registry.Print()
}
