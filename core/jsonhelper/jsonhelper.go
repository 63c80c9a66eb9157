// Package jsonhelper decodes and converts values through JSON.
package jsonhelper

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Option configures the decoder.
type Option func(*json.Decoder)

// Strict rejects object keys that do not match a struct field.
func Strict(d *json.Decoder) {
	d.DisallowUnknownFields()
}

// Numbers decodes numbers in interface{} values as json.Number instead of float64.
func Numbers(d *json.Decoder) {
	d.UseNumber()
}

// Decode unmarshals one JSON document into ptr, rejecting trailing data.
func Decode(j []byte, ptr any, opts ...Option) error {
	d := json.NewDecoder(bytes.NewReader(j))
	for _, opt := range opts {
		opt(d)
	}
	if e := d.Decode(ptr); e != nil {
		return e
	}
	if d.More() {
		return fmt.Errorf("unexpected data after JSON value at offset %d", d.InputOffset())
	}
	return nil
}

// Roundtrip converts input into ptr by marshaling it to JSON and decoding the result.
// GraphQL arguments and results are converted to Go structs this way.
func Roundtrip(input, ptr any, opts ...Option) error {
	j, e := json.Marshal(input)
	if e != nil {
		return e
	}
	return Decode(j, ptr, opts...)
}
