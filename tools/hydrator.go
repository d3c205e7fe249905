package tools

import (
	"database/sql"
	"fmt"
	"reflect"
)

// ValueConverter converts a raw column value before it is assigned
// to the struct field named by field. A nil ValueConverter assigns
// raw values directly.
type ValueConverter func(field string, value interface{}) (interface{}, error)

// HydrateStruct populates the fields of a struct from a map of field name
// to column value, converting each value through convert first.
// Struct must be a pointer to a struct.
func HydrateStruct(Struct interface{}, values map[string]interface{}, convert ValueConverter) error {
	structPointer := reflect.ValueOf(Struct)
	if structPointer.Kind() != reflect.Ptr {
		return fmt.Errorf("Pointer expected, got %#v", Struct)
	}
	structValue := reflect.Indirect(structPointer)
	zeroValue := reflect.Value{}
	for name, value := range values {
		field := structValue.FieldByName(name)
		if field == zeroValue {
			return fmt.Errorf("No field found for column %s in struct %#v", name, Struct)
		}
		if !field.CanSet() {
			return fmt.Errorf("Unexported field %s cannot be set in struct %#v", name, Struct)
		}
		if convert != nil {
			converted, err := convert(name, value)
			if err != nil {
				return err
			}
			value = converted
		}
		if err := SetFieldValue(field, value); err != nil {
			return err
		}
	}
	return nil
}

// SetFieldValue assigns a column value to a struct field, converting
// between compatible types. Fields whose address implements sql.Scanner
// are populated through Scan.
func SetFieldValue(field reflect.Value, value interface{}) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	valueOf := reflect.ValueOf(value)
	if valueOf.Type().AssignableTo(field.Type()) {
		field.Set(valueOf)
		return nil
	}
	if field.CanAddr() {
		if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(value)
		}
	}
	if valueOf.Type().ConvertibleTo(field.Type()) {
		field.Set(valueOf.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("Cannot assign value %#v to field of type %s", value, field.Type())
}

// ScanRowsToMaps drains sql rows into one map per row, keyed
// by the column aliases of the query.
func ScanRowsToMaps(rows RowsScanner) ([]map[string]interface{}, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	results := []map[string]interface{}{}
	for rows.Next() {
		pointers := make([]interface{}, len(columns))
		for i := range pointers {
			pointers[i] = new(interface{})
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := map[string]interface{}{}
		for i, column := range columns {
			row[column] = *(pointers[i].(*interface{}))
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// RowsScanner is the subset of *sql.Rows used by ScanRowsToMaps.
type RowsScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(destination ...interface{}) error
}
