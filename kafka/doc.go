/*
Package kafka integrates the schema registry encoders with kafka message streams.

Codecs are registered by name and records reference them through the Record
contract. The Producer stamps the codec name on a message header so the Consumer
can select the same adapter when decoding.
*/
package kafka
