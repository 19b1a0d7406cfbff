package schemaregistry

import (
	"github.com/tryfix/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

type ProtoUnmarshaler struct {
	data []byte
}

type ProtoMarshaller struct{}

func NewProtoMarshaller() Marshaller {
	return &ProtoMarshaller{}
}

func (s *ProtoMarshaller) Init() error {
	return nil
}

func (s *ProtoMarshaller) NewUnmarshaler(data []byte) Unmarshaler {
	return &ProtoUnmarshaler{
		data: data,
	}
}

func (s *ProtoUnmarshaler) Unmarshal(in interface{}) error {
	message, ok := in.(proto.Message)
	if !ok {
		return errors.New(`unmarshal target is not a proto.Message`)
	}

	wrapper := &anypb.Any{}
	if err := proto.Unmarshal(s.data, wrapper); err != nil {
		return errors.WithPrevious(err, `failed to unmarshal anypb wrapper`)
	}

	if err := anypb.UnmarshalTo(wrapper, message, proto.UnmarshalOptions{}); err != nil {
		return errors.WithPrevious(err, `failed to unmarshal anypb`)
	}

	return nil
}

func (s *ProtoMarshaller) Marshall(v interface{}) ([]byte, error) {
	message, ok := v.(proto.Message)
	if !ok {
		return nil, errors.New(`value is not a proto.Message`)
	}

	anyPB, err := anypb.New(message)
	if err != nil {
		return nil, errors.WithPrevious(err, `failed to add message into anypb`)
	}

	value, err := proto.Marshal(anyPB)
	if err != nil {
		return nil, errors.WithPrevious(err, `failed to marshal message into anypb`)
	}

	return value, nil
}
