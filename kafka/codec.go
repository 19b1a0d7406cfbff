package kafka

import (
	"fmt"
	"sync"

	"github.com/tryfix/errors"
)

// Codec is a named encode/decode strategy. Codecs are registered once with
// RegisterCodec (typically from an init function or application setup code) and
// records reference them by name at encode/decode time.
type Codec interface {
	// Name returns the name the codec is registered under
	Name() string
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

var codecs = struct {
	sync.RWMutex
	byName map[string]Codec
}{byName: make(map[string]Codec)}

// RegisterCodec makes the codec available to producers and consumers under its name.
// Registering two codecs under the same name is an error.
func RegisterCodec(c Codec) error {
	codecs.Lock()
	defer codecs.Unlock()

	if _, ok := codecs.byName[c.Name()]; ok {
		return errors.New(fmt.Sprintf(`codec [%s] already registered`, c.Name()))
	}

	codecs.byName[c.Name()] = c
	return nil
}

// MustRegisterCodec is like RegisterCodec but panics on duplicate registration
func MustRegisterCodec(c Codec) {
	if err := RegisterCodec(c); err != nil {
		panic(err)
	}
}

// CodecByName returns the codec registered under the given name
func CodecByName(name string) (Codec, error) {
	codecs.RLock()
	defer codecs.RUnlock()

	c, ok := codecs.byName[name]
	if !ok {
		return nil, errors.New(fmt.Sprintf(`codec [%s] is not registered`, name))
	}

	return c, nil
}

// Encoder is the contract the schemaregistry package encoders satisfy
type Encoder interface {
	Encode(data interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
	Schema() string
}

// SchemaCodec adapts a schema registry encoder to a named Codec
type SchemaCodec struct {
	name    string
	encoder Encoder
}

// NewSchemaCodec returns a Codec which delegates to the given schema registry encoder
func NewSchemaCodec(name string, encoder Encoder) *SchemaCodec {
	return &SchemaCodec{
		name:    name,
		encoder: encoder,
	}
}

func (c *SchemaCodec) Name() string {
	return c.name
}

func (c *SchemaCodec) Encode(v interface{}) ([]byte, error) {
	return c.encoder.Encode(v)
}

func (c *SchemaCodec) Decode(data []byte) (interface{}, error) {
	return c.encoder.Decode(data)
}

// Schema returns the schema definition backing the codec
func (c *SchemaCodec) Schema() string {
	return c.encoder.Schema()
}
