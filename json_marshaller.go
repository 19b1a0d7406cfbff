package schemaregistry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tryfix/errors"
)

type JSONUnmarshaler struct {
	compiled *jsonschema.Schema
	data     []byte
}

// JSONMarshaller encodes values as plain json documents validated against the
// registered JSON Schema on both encode and decode.
type JSONMarshaller struct {
	schema   string
	compiled *jsonschema.Schema
}

func NewJSONMarshaller(schema string) *JSONMarshaller {
	return &JSONMarshaller{
		schema: schema,
	}
}

func (s *JSONMarshaller) Init() error {
	compiled, err := jsonschema.CompileString(`schema.json`, s.schema)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`schema compiling error for schema %s`, s.schema))
	}

	s.compiled = compiled
	return nil
}

func (s *JSONMarshaller) NewUnmarshaler(data []byte) Unmarshaler {
	return &JSONUnmarshaler{
		compiled: s.compiled,
		data:     data,
	}
}

func (s *JSONUnmarshaler) Unmarshal(in interface{}) error {
	if err := validateJSON(s.compiled, s.data); err != nil {
		return err
	}

	if err := json.Unmarshal(s.data, in); err != nil {
		return errors.WithPrevious(err, `json unmarshal failed`)
	}

	return nil
}

func (s *JSONMarshaller) Marshall(data interface{}) ([]byte, error) {
	byt, err := json.Marshal(data)
	if err != nil {
		return nil, errors.WithPrevious(err, `json marshal failed`)
	}

	if err := validateJSON(s.compiled, byt); err != nil {
		return nil, err
	}

	return byt, nil
}

func validateJSON(compiled *jsonschema.Schema, data []byte) error {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return errors.WithPrevious(err, `payload is not valid json`)
	}

	if err := compiled.Validate(doc); err != nil {
		return errors.WithPrevious(err, `json schema validation failed`)
	}

	return nil
}
