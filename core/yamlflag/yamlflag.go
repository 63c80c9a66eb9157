// Package yamlflag provides a command line flag that accepts a YAML document.
package yamlflag

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/ghodss/yaml"
	"github.com/usnistgov/symoffload/core/jsonhelper"
)

// Value is a flag.Getter that decodes YAML into a config struct.
//
// The flag value is either the YAML document itself, or '@' followed by a file name:
//
//	--config="offload: {nInstances: 2}"
//	--config=@bench.yaml
//
// Keys that do not match a struct field are rejected, so that a typo is not silently ignored.
// Repeated flags are applied in order, each overwriting the fields it mentions.
type Value struct {
	ptr any
}

var _ flag.Getter = (*Value)(nil)

// New creates a Value that decodes into ptr.
// Panics if ptr is not a non-nil pointer.
func New(ptr any) *Value {
	if val := reflect.ValueOf(ptr); val.Kind() != reflect.Pointer || val.IsNil() {
		panic(fmt.Errorf("yamlflag.New requires non-nil pointer, got %T", ptr))
	}
	return &Value{ptr: ptr}
}

// Get returns the pointer passed to New.
func (v *Value) Get() any {
	return v.ptr
}

// Set decodes a YAML document or file.
func (v *Value) Set(s string) error {
	doc := []byte(s)
	if len(s) > 0 && s[0] == '@' {
		var e error
		if doc, e = os.ReadFile(s[1:]); e != nil {
			return e
		}
	}

	j, e := yaml.YAMLToJSON(doc)
	if e != nil {
		return e
	}
	return jsonhelper.Decode(j, v.ptr, jsonhelper.Strict)
}

// String returns current value as JSON.
func (v *Value) String() string {
	if v == nil || v.ptr == nil {
		return ""
	}
	j, _ := json.Marshal(v.ptr)
	return string(j)
}
