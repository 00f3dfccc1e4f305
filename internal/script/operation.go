package script

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Operation is the resolved per-object operation. Scripts carry it as text;
// it is decoded exactly once, at the deserialization boundary.
type Operation int

const (
	OperationUnknown Operation = iota
	Insert
	Update
	Upsert
	Delete
	Readonly
)

var operationNames = map[Operation]string{
	Insert:   "Insert",
	Update:   "Update",
	Upsert:   "Upsert",
	Delete:   "Delete",
	Readonly: "Readonly",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return "Unknown"
}

// ParseOperation maps the textual operation value from a script to the enum.
// Unknown text is an error, never a silent default.
func ParseOperation(s string) (Operation, error) {
	for op, name := range operationNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	return OperationUnknown, fmt.Errorf("unknown operation %q", s)
}

// OperationDecodeHook decodes textual operation values during script
// unmarshalling.
func OperationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Operation(0)) {
			return data, nil
		}
		return ParseOperation(data.(string))
	}
}
