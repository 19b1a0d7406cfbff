package kafka

// Record is the model contract for messages sent through the Producer. The codec
// name returned by Codec selects the registered encode/decode strategy, the same
// way on both the producing and consuming side.
type Record interface {
	Codec() string
}

// Keyed is implemented by records which carry their own partition key
type Keyed interface {
	Key() []byte
}

// MarshalRecord encodes the record with the codec it names
func MarshalRecord(r Record) ([]byte, error) {
	codec, err := CodecByName(r.Codec())
	if err != nil {
		return nil, err
	}

	return codec.Encode(r)
}

// UnmarshalRecord decodes a payload with the named codec
func UnmarshalRecord(codecName string, data []byte) (interface{}, error) {
	codec, err := CodecByName(codecName)
	if err != nil {
		return nil, err
	}

	return codec.Decode(data)
}
