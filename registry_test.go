package schemaregistry

import (
	"os"
	"reflect"
	"testing"
	"time"

	registry "github.com/riferrei/srclient"
	"github.com/tryfix/log"
)

var testSchemas = map[string]string{}

func init() {
	bytAvro, err := os.ReadFile(`sample.avro`)
	if err != nil {
		panic(err)
	}

	bytAvroV2, err := os.ReadFile(`sample_v2.avro`)
	if err != nil {
		panic(err)
	}

	bytJSON, err := os.ReadFile(`sample.json`)
	if err != nil {
		panic(err)
	}

	testSchemas[`avro_v1`] = string(bytAvro)
	testSchemas[`avro_v2`] = string(bytAvroV2)
	testSchemas[`json_v1`] = string(bytJSON)
}

type SampleV1 struct {
	Field1 int     `avro:"field1" json:"field1"`
	Field2 float64 `avro:"field2" json:"field2"`
	Field3 string  `avro:"field3" json:"field3"`
}

type SampleV2 struct {
	Field1 int     `avro:"field1"`
	Field2 float64 `avro:"field2"`
	Field3 string  `avro:"field3"`
	Field4 string  `avro:"field4"`
}

func sampleV1Unmarshaler(unmarshaler Unmarshaler) (interface{}, error) {
	v := SampleV1{}
	if err := unmarshaler.Unmarshal(&v); err != nil {
		return nil, err
	}

	return v, nil
}

type mockRegistry struct {
	*Registry
	client *registry.MockSchemaRegistryClient
}

func setupMockRegistry(t *testing.T, bgSyncInterval time.Duration) mockRegistry {
	t.Helper()

	mockClient := registry.CreateMockSchemaRegistryClient(`mock://test`)
	reg, err := NewRegistry(`mock://test`, WithMockClient(mockClient),
		WithLogger(log.Constructor.Log(log.WithColors(false))),
		WithBackgroundSync(bgSyncInterval),
	)
	if err != nil {
		t.Fatal(err)
	}

	return mockRegistry{
		Registry: reg,
		client:   mockClient,
	}
}

func TestRegistry_WithSchema(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.client.SetSchema(101, `test_subject`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 2, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	v := SampleV1{
		Field1: 100,
		Field2: 10.11,
		Field3: "text",
	}
	byt, err := reg.WithSchema(`test_subject`, 2).Encode(v)
	if err != nil {
		t.Fatal(err)
	}

	vOut, err := reg.WithSchema(`test_subject`, 2).Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(v, vOut) {
		t.Errorf(`need %v, have %v`, v, vOut)
	}
}

func TestRegistry_WithLatestSchema(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.client.SetSchema(101, `test_subject`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 1, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 2, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	latest := reg.WithLatestSchema(`test_subject`)
	if latest.Subject().Version != 2 {
		t.Fatalf(`need version 2, have %s`, latest.Subject().Version)
	}

	v := SampleV1{
		Field1: 100,
		Field2: 10.11,
		Field3: "text",
	}
	byt, err := latest.Encode(v)
	if err != nil {
		t.Fatal(err)
	}

	vOut, err := reg.GenericEncoder().Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(v, vOut) {
		t.Errorf(`need %v, have %v`, v, vOut)
	}
}

func TestRegistry_RegisterAllVersions(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.client.SetSchema(101, `test_subject`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, VersionAll, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	if !reg.hasVersion(`test_subject`, 1) || !reg.hasVersion(`test_subject`, 2) {
		t.Fatal(`all versions should be registered`)
	}
}

func TestRegistry_GenericEncoder(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 1, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	v := SampleV1{
		Field1: 100,
		Field2: 10.11,
		Field3: "text",
	}
	byt, err := reg.WithSchema(`test_subject`, 1).Encode(v)
	if err != nil {
		t.Fatal(err)
	}

	vOut, err := reg.GenericEncoder().Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(v, vOut) {
		t.Errorf(`need %v, have %v`, v, vOut)
	}
}

func TestRegistry_GenericEncoderShouldFailForUnregisteredSchemas(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(500, `test_subject_other`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	reg2 := setupMockRegistry(t, time.Second)
	if _, err := reg2.client.SetSchema(500, `test_subject_other`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	if err := reg2.Register(`test_subject_other`, 2, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	v := SampleV1{
		Field1: 100,
		Field2: 10.11,
		Field3: "text",
	}
	byt, err := reg2.WithSchema(`test_subject_other`, 2).Encode(v)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.GenericEncoder().Decode(byt); err == nil {
		t.Fatal(`decode should fail for an unregistered schema id`)
	}
}

func TestRegistry_CreateSchema(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)

	if err := reg.CreateSchema(`test_subject`, testSchemas[`avro_v1`], registry.Avro, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	v := SampleV1{
		Field1: 100,
		Field2: 10.11,
		Field3: "text",
	}
	byt, err := reg.WithLatestSchema(`test_subject`).Encode(v)
	if err != nil {
		t.Fatal(err)
	}

	vOut, err := reg.GenericEncoder().Decode(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(v, vOut) {
		t.Errorf(`need %v, have %v`, v, vOut)
	}
}

func TestEncoder_DecodeShouldFailForMalformedMessages(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 1, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	encoder := reg.WithSchema(`test_subject`, 1)

	if _, err := encoder.Decode([]byte{0x0, 0x0}); err == nil {
		t.Error(`decode should fail for messages shorter than the wire prefix`)
	}

	if _, err := encoder.Decode([]byte{0x1, 0x0, 0x0, 0x0, 0x64, 0x2}); err == nil {
		t.Error(`decode should fail for an invalid magic byte`)
	}
}

func TestRegistry_RegisterLatestShouldNotRebind(t *testing.T) {
	reg := setupMockRegistry(t, time.Second)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, VersionLatest, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	e1 := reg.WithLatestSchema(`test_subject`)

	if err := reg.Register(`test_subject`, VersionLatest, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	if e2 := reg.WithLatestSchema(`test_subject`); e1 != e2 {
		t.Fatal(`re-registering the latest version should keep the existing encoder`)
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := setupMockRegistry(t, 100*time.Millisecond)
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 1, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	if err := reg.Sync(); err != nil {
		t.Fatal(err)
	}

	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	// Close is idempotent
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWithBackgroundSync(t *testing.T) {
	reg := setupMockRegistry(t, 100*time.Millisecond)

	// the mock client is not safe for writes concurrent with the poll loop, so
	// both versions are in place before the sync starts
	if _, err := reg.client.SetSchema(100, `test_subject`, testSchemas[`avro_v1`], registry.Avro, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.client.SetSchema(101, `test_subject`, testSchemas[`avro_v2`], registry.Avro, 2); err != nil {
		t.Fatal(err)
	}

	if err := reg.Register(`test_subject`, 1, sampleV1Unmarshaler); err != nil {
		t.Fatal(err)
	}

	if err := reg.Sync(); err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	deadline := time.Now().Add(3 * time.Second)
	for !reg.hasVersion(`test_subject`, 2) {
		if time.Now().After(deadline) {
			t.Fatal(`background sync did not pick up the new version`)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if reg.WithSchema(`test_subject`, 2) == nil {
		t.Fatal()
	}
}
