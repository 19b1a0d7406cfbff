package schemaregistry

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestProtoMarshaller_RoundTrip(t *testing.T) {
	marshaller := NewProtoMarshaller()
	if err := marshaller.Init(); err != nil {
		t.Fatal(err)
	}

	in := wrapperspb.String(`text`)
	byt, err := marshaller.Marshall(in)
	if err != nil {
		t.Fatal(err)
	}

	out := &wrapperspb.StringValue{}
	if err := marshaller.NewUnmarshaler(byt).Unmarshal(out); err != nil {
		t.Fatal(err)
	}

	if !proto.Equal(in, out) {
		t.Errorf(`need %v, have %v`, in, out)
	}
}

func TestProtoMarshaller_ShouldRejectNonProtoValues(t *testing.T) {
	marshaller := NewProtoMarshaller()
	if err := marshaller.Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := marshaller.Marshall(`not a proto message`); err == nil {
		t.Error(`marshal should fail for non proto values`)
	}

	if err := marshaller.NewUnmarshaler([]byte{0x1}).Unmarshal(`not a proto message`); err == nil {
		t.Error(`unmarshal should fail for non proto targets`)
	}
}
