/*
Package schemaregistry provides a generic Encoder/Decoder interface on top of a
Confluent compatible Schema Registry.

It hides the complexity of handling the avro, protobuf and json schema packages by
abstracting them with a generic Encoder interface, and keeps the local schema cache
up to date in background.

# Features
  - Automatically detects and registers new subject versions
  - Fetches and registers schemas if not already registered
  - Named codec integration for kafka producers/consumers (see the kafka subpackage)

Schema registry API : https://docs.confluent.io/platform/current/schema-registry/develop/api.html

See the specific specifications for an understanding how encoding works.

Avro: http://avro.apache.org/docs/current/

Protobuf: https://protobuf.dev/programming-guides/encoding/

JSON Schema: https://json-schema.org/specification
*/
package schemaregistry
