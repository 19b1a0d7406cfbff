package schemaregistry

// GenericEncoder holds the reference to Registry which can be used to decode messages
// without knowing the subject upfront
type GenericEncoder struct {
	*Encoder
}

func (s *GenericEncoder) Encode(data interface{}) ([]byte, error) {
	panic(`generic encoder does not support encoding of messages`)
}

// Schema return the subject associated with the Encoder
func (s *GenericEncoder) Schema() string {
	return `generic`
}
