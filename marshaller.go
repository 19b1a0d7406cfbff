package schemaregistry

// Marshaller abstracts the schema type specific wire encoding (avro, protobuf,
// json schema) behind a single contract consumed by the Encoder.
type Marshaller interface {
	// Init prepares the marshaller (eg: parses the schema). Must be called once
	// before Marshall or NewUnmarshaler.
	Init() error
	// Marshall encodes the given value into the schema type specific binary form
	Marshall(v interface{}) ([]byte, error)
	// NewUnmarshaler wraps a raw payload so the caller decides the target type
	NewUnmarshaler(data []byte) Unmarshaler
}

// Unmarshaler decodes a wrapped payload into the given target
type Unmarshaler interface {
	Unmarshal(in interface{}) error
}
