package orm

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sync"
)

// UserType is implemented by user defined custom types. A custom type is
// not a persistent attribute type by itself, it is a codec responsible for
// converting values of some other type to and from their database column
// representation. That other type should have value semantics, its identity
// is lost as part of the conversion.
//
// Implementations must be immutable and safe for concurrent use. A column
// references its UserType by the name it was registered under in the
// TypeRegistry (see Column.Type).
type UserType interface {
	// SQLType returns the SQL column type the codec maps to, like "TEXT" or "BLOB".
	SQLType() string
	// ReturnedType is the type of the values produced by Get.
	ReturnedType() reflect.Type
	// Equals compares two instances of the mapped type for persistence equality,
	// it is used by dirty checking. Both arguments may be nil.
	Equals(x, y interface{}) bool
	// Get materializes a value of the mapped type from a scanned column value.
	// Implementations should handle the possibility of nil.
	Get(src interface{}) (interface{}, error)
	// Set converts a value of the mapped type to a driver value suitable
	// for statement binding. Implementations should handle the possibility of nil.
	Set(value interface{}) (driver.Value, error)
	// DeepCopy returns a deep copy of the persistent state. It is safe
	// to return the argument for immutable types and nil values.
	DeepCopy(value interface{}) interface{}
	// IsMutable reports whether values of the mapped type are mutable.
	IsMutable() bool
	// Disassemble transforms a value into its cacheable representation.
	// At the very least this should perform a deep copy when the type is mutable.
	Disassemble(value interface{}) (interface{}, error)
	// Assemble reconstructs a value from its cacheable representation,
	// owner is the entity that owns the value.
	Assemble(cached, owner interface{}) (interface{}, error)
	// Replace returns the value to keep when a detached entity is merged into
	// a managed one. Returning detached is safe for immutable types.
	Replace(detached, managed, owner interface{}) interface{}
}

// TypeRegistry holds UserType codecs indexed by name.
// The zero value is not usable, use NewTypeRegistry.
type TypeRegistry struct {
	mutex sync.RWMutex
	types map[string]UserType
}

// NewTypeRegistry creates a registry pre populated with the built in codecs.
func NewTypeRegistry() *TypeRegistry {
	registry := &TypeRegistry{types: map[string]UserType{}}
	registry.Register("uuid", UUIDType{})
	registry.Register("time", TimeType{})
	registry.Register("boolint", BoolIntType{})
	return registry
}

// Register adds a codec under the given name,
// an existing codec with the same name is replaced.
func (registry *TypeRegistry) Register(name string, userType UserType) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.types[name] = userType
}

// Lookup finds a codec by name.
func (registry *TypeRegistry) Lookup(name string) (UserType, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	userType, ok := registry.types[name]
	return userType, ok
}

// MustLookup finds a codec by name or returns an error
// naming the missing codec.
func (registry *TypeRegistry) MustLookup(name string) (UserType, error) {
	userType, ok := registry.Lookup(name)
	if !ok {
		return nil, TypeNotRegisteredError(fmt.Sprintf("No UserType registered under the name '%s' .", name))
	}
	return userType, nil
}
