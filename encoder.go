package schemaregistry

import (
	"encoding/binary"
	"fmt"

	"github.com/tryfix/errors"
)

const wirePrefixLen = 5

// Encoder holds the reference to Registry and Subject which can be used to encode
// and decode messages
type Encoder struct {
	subject    *Subject
	registry   *Registry
	marshaller Marshaller
}

func newEncoder(reg *Registry, subject *Subject, marshaller Marshaller) *Encoder {
	return &Encoder{
		subject:    subject,
		registry:   reg,
		marshaller: marshaller,
	}
}

// Encode returns a byte slice with the schema type encoded message. Magic byte and
// schema id will be appended to its beginning.
//
//	╔════════════════════╤════════════════════╤═════════════════╗
//	║ magic byte(1 byte) │ schema id(4 bytes) │ encoded message ║
//	╚════════════════════╧════════════════════╧═════════════════╝
func (s *Encoder) Encode(data interface{}) ([]byte, error) {
	payload, err := s.marshaller.Marshall(data)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`encode failed for subject [%s][%s]`, s.subject.Subject, s.subject.Version))
	}

	return append(encodePrefix(s.subject.Id), payload...), nil
}

// Decode returns the decoded go value of the encoded message and an error if it's
// unable to decode. The schema is resolved from the id embedded in the wire prefix
// and the payload is handed to the UnmarshalerFunc registered for the subject.
func (s *Encoder) Decode(data []byte) (interface{}, error) {
	if len(data) < wirePrefixLen {
		return nil, errors.New(fmt.Sprintf(`message is too short for the wire prefix (%d bytes)`, len(data)))
	}

	if data[0] != 0x0 {
		return nil, errors.New(fmt.Sprintf(`invalid magic byte [%#x]`, data[0]))
	}

	schemaID := decodePrefix(data)

	s.registry.mu.RLock()
	encoder, ok := s.registry.idMap[schemaID]
	s.registry.mu.RUnlock()
	if !ok {
		return nil, errors.New(fmt.Sprintf(`schema id [%d] is not registered`, schemaID))
	}

	if encoder.subject.UnmarshalerFunc == nil {
		return nil, errors.New(fmt.Sprintf(`unmarshaler does not exist for schema id [%d]`, schemaID))
	}

	return encoder.subject.UnmarshalerFunc(encoder.marshaller.NewUnmarshaler(data[wirePrefixLen:]))
}

// Schema returns the schema definition associated with the Encoder
func (s *Encoder) Schema() string {
	return s.subject.Schema
}

// Subject returns the subject metadata associated with the Encoder
func (s *Encoder) Subject() *Subject {
	return s.subject
}

func encodePrefix(id int) []byte {
	byt := make([]byte, wirePrefixLen)
	binary.BigEndian.PutUint32(byt[1:], uint32(id))
	return byt
}

func decodePrefix(byt []byte) int {
	return int(binary.BigEndian.Uint32(byt[1:wirePrefixLen]))
}
