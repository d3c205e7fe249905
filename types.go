package orm

import (
	"bytes"
	"database/sql/driver"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// JSONType converts values of an arbitrary Go type to and from a TEXT
// column holding their JSON representation. Use NewJSONType with a
// prototype of the mapped type :
//
//	orm.RegisterType("settings", orm.NewJSONType(Settings{}))
type JSONType struct {
	returnedType reflect.Type
}

func NewJSONType(prototype interface{}) JSONType {
	return JSONType{reflect.Indirect(reflect.ValueOf(prototype)).Type()}
}

func (t JSONType) SQLType() string            { return "TEXT" }
func (t JSONType) ReturnedType() reflect.Type { return t.returnedType }
func (t JSONType) IsMutable() bool            { return true }

func (t JSONType) Equals(x, y interface{}) bool {
	return reflect.DeepEqual(x, y)
}

func (t JSONType) Get(src interface{}) (interface{}, error) {
	if src == nil {
		return reflect.Zero(t.returnedType).Interface(), nil
	}
	var data []byte
	switch source := src.(type) {
	case []byte:
		data = source
	case string:
		data = []byte(source)
	default:
		return nil, fmt.Errorf("JSONType cannot convert column value %#v .", src)
	}
	pointer := reflect.New(t.returnedType)
	if err := json.Unmarshal(data, pointer.Interface()); err != nil {
		return nil, err
	}
	return pointer.Elem().Interface(), nil
}

func (t JSONType) Set(value interface{}) (driver.Value, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t JSONType) DeepCopy(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	pointer := reflect.New(t.returnedType)
	if err := json.Unmarshal(data, pointer.Interface()); err != nil {
		return value
	}
	return pointer.Elem().Interface()
}

func (t JSONType) Disassemble(value interface{}) (interface{}, error) {
	return t.Set(value)
}

func (t JSONType) Assemble(cached, owner interface{}) (interface{}, error) {
	return t.Get(cached)
}

func (t JSONType) Replace(detached, managed, owner interface{}) interface{} {
	return t.DeepCopy(detached)
}

// GobType converts values of an arbitrary Go type to and from a BLOB
// column holding their gob encoding. Use NewGobType with a prototype
// of the mapped type.
type GobType struct {
	returnedType reflect.Type
}

func NewGobType(prototype interface{}) GobType {
	return GobType{reflect.Indirect(reflect.ValueOf(prototype)).Type()}
}

func (t GobType) SQLType() string            { return "BLOB" }
func (t GobType) ReturnedType() reflect.Type { return t.returnedType }
func (t GobType) IsMutable() bool            { return true }

func (t GobType) Equals(x, y interface{}) bool {
	return reflect.DeepEqual(x, y)
}

func (t GobType) Get(src interface{}) (interface{}, error) {
	if src == nil {
		return reflect.Zero(t.returnedType).Interface(), nil
	}
	data, ok := src.([]byte)
	if !ok {
		return nil, fmt.Errorf("GobType expects a []byte column value, got %#v .", src)
	}
	pointer := reflect.New(t.returnedType)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(pointer.Interface()); err != nil {
		return nil, err
	}
	return pointer.Elem().Interface(), nil
}

func (t GobType) Set(value interface{}) (driver.Value, error) {
	if value == nil {
		return nil, nil
	}
	buffer := new(bytes.Buffer)
	if err := gob.NewEncoder(buffer).Encode(value); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (t GobType) DeepCopy(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	encoded, err := t.Set(value)
	if err != nil {
		return value
	}
	copied, err := t.Get(encoded)
	if err != nil {
		return value
	}
	return copied
}

func (t GobType) Disassemble(value interface{}) (interface{}, error) {
	return t.Set(value)
}

func (t GobType) Assemble(cached, owner interface{}) (interface{}, error) {
	if cached == nil {
		return t.Get(nil)
	}
	return t.Get(cached)
}

func (t GobType) Replace(detached, managed, owner interface{}) interface{} {
	return t.DeepCopy(detached)
}

// UUIDType converts uuid.UUID values to and from a TEXT column.
type UUIDType struct{}

func (t UUIDType) SQLType() string            { return "TEXT" }
func (t UUIDType) ReturnedType() reflect.Type { return reflect.TypeOf(uuid.UUID{}) }
func (t UUIDType) IsMutable() bool            { return false }

func (t UUIDType) Equals(x, y interface{}) bool {
	return x == y
}

func (t UUIDType) Get(src interface{}) (interface{}, error) {
	switch source := src.(type) {
	case nil:
		return uuid.Nil, nil
	case string:
		return uuid.Parse(source)
	case []byte:
		return uuid.ParseBytes(source)
	default:
		return nil, fmt.Errorf("UUIDType cannot convert column value %#v .", src)
	}
}

func (t UUIDType) Set(value interface{}) (driver.Value, error) {
	if value == nil {
		return nil, nil
	}
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("UUIDType expects a uuid.UUID value, got %#v .", value)
	}
	if id == uuid.Nil {
		return nil, nil
	}
	return id.String(), nil
}

func (t UUIDType) DeepCopy(value interface{}) interface{} { return value }

func (t UUIDType) Disassemble(value interface{}) (interface{}, error) {
	return value, nil
}

func (t UUIDType) Assemble(cached, owner interface{}) (interface{}, error) {
	return cached, nil
}

func (t UUIDType) Replace(detached, managed, owner interface{}) interface{} {
	return detached
}

// TimeType converts time.Time values to and from a TEXT column
// holding their RFC3339 representation.
type TimeType struct{}

func (t TimeType) SQLType() string            { return "TEXT" }
func (t TimeType) ReturnedType() reflect.Type { return reflect.TypeOf(time.Time{}) }
func (t TimeType) IsMutable() bool            { return false }

func (t TimeType) Equals(x, y interface{}) bool {
	a, okA := x.(time.Time)
	b, okB := y.(time.Time)
	if !okA || !okB {
		return x == y
	}
	return a.Equal(b)
}

func (t TimeType) Get(src interface{}) (interface{}, error) {
	switch source := src.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return source, nil
	case string:
		return time.Parse(time.RFC3339Nano, source)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(source))
	default:
		return nil, fmt.Errorf("TimeType cannot convert column value %#v .", src)
	}
}

func (t TimeType) Set(value interface{}) (driver.Value, error) {
	if value == nil {
		return nil, nil
	}
	instant, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("TimeType expects a time.Time value, got %#v .", value)
	}
	if instant.IsZero() {
		return nil, nil
	}
	return instant.Format(time.RFC3339Nano), nil
}

func (t TimeType) DeepCopy(value interface{}) interface{} { return value }

func (t TimeType) Disassemble(value interface{}) (interface{}, error) {
	return value, nil
}

func (t TimeType) Assemble(cached, owner interface{}) (interface{}, error) {
	return cached, nil
}

func (t TimeType) Replace(detached, managed, owner interface{}) interface{} {
	return detached
}

// BoolIntType converts bool values to and from an INTEGER column.
type BoolIntType struct{}

func (t BoolIntType) SQLType() string            { return "INTEGER" }
func (t BoolIntType) ReturnedType() reflect.Type { return reflect.TypeOf(false) }
func (t BoolIntType) IsMutable() bool            { return false }

func (t BoolIntType) Equals(x, y interface{}) bool {
	return x == y
}

func (t BoolIntType) Get(src interface{}) (interface{}, error) {
	switch source := src.(type) {
	case nil:
		return false, nil
	case bool:
		return source, nil
	case int64:
		return source != 0, nil
	default:
		return nil, fmt.Errorf("BoolIntType cannot convert column value %#v .", src)
	}
}

func (t BoolIntType) Set(value interface{}) (driver.Value, error) {
	if value == nil {
		return nil, nil
	}
	flag, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("BoolIntType expects a bool value, got %#v .", value)
	}
	if flag {
		return int64(1), nil
	}
	return int64(0), nil
}

func (t BoolIntType) DeepCopy(value interface{}) interface{} { return value }

func (t BoolIntType) Disassemble(value interface{}) (interface{}, error) {
	return value, nil
}

func (t BoolIntType) Assemble(cached, owner interface{}) (interface{}, error) {
	return cached, nil
}

func (t BoolIntType) Replace(detached, managed, owner interface{}) interface{} {
	return detached
}
