package orm

import (
	"fmt"
	"reflect"

	"github.com/nivruth-naka/hibernate-orm/tools"
)

// hydrateEntity populates an entity from a scanned row keyed by field name.
// Column values are materialized through the column's UserType when one is
// declared, other values are assigned with the usual driver conversions.
func (orm *ORM) hydrateEntity(metadata Metadata, entity Entity, row map[string]interface{}) error {
	return tools.HydrateStruct(entity, row, func(field string, value interface{}) (interface{}, error) {
		column, ok := metadata.ResolveColumnByFieldName(field)
		if !ok || column.Type == "" {
			return value, nil
		}
		userType, err := orm.registry.MustLookup(column.Type)
		if err != nil {
			return nil, err
		}
		return userType.Get(value)
	})
}

// bindColumnValue converts a field value to its column representation
// before statement binding.
func (orm *ORM) bindColumnValue(column Column, value interface{}) (interface{}, error) {
	if column.Type == "" {
		return value, nil
	}
	userType, err := orm.registry.MustLookup(column.Type)
	if err != nil {
		return nil, err
	}
	return userType.Set(value)
}

// snapshotEntity records the persistent state of an entity for dirty
// checking. Mutable values converted by a UserType are deep copied so later
// in place mutation of the entity can be detected at flush time.
func (orm *ORM) snapshotEntity(metadata Metadata, entity Entity) map[string]interface{} {
	snapshot := map[string]interface{}{}
	value := reflect.Indirect(reflect.ValueOf(entity))
	for _, column := range metadata.Columns {
		fieldValue := value.FieldByName(column.Field).Interface()
		if column.Type != "" {
			if userType, ok := orm.registry.Lookup(column.Type); ok && userType.IsMutable() {
				fieldValue = userType.DeepCopy(fieldValue)
			}
		}
		snapshot[column.Field] = fieldValue
	}
	return snapshot
}

// columnEquals compares a current field value with its snapshot, using the
// column's UserType equality when one is declared.
func (orm *ORM) columnEquals(column Column, current, snapshotted interface{}) bool {
	if column.Type != "" {
		if userType, ok := orm.registry.Lookup(column.Type); ok {
			return userType.Equals(current, snapshotted)
		}
	}
	return reflect.DeepEqual(current, snapshotted)
}

// disassembleEntity transforms an entity into its cacheable representation,
// one disassembled value per column.
func (orm *ORM) disassembleEntity(metadata Metadata, entity Entity) (map[string]interface{}, error) {
	state := map[string]interface{}{}
	value := reflect.Indirect(reflect.ValueOf(entity))
	for _, column := range metadata.Columns {
		fieldValue := value.FieldByName(column.Field).Interface()
		if column.Type != "" {
			userType, err := orm.registry.MustLookup(column.Type)
			if err != nil {
				return nil, err
			}
			if fieldValue, err = userType.Disassemble(fieldValue); err != nil {
				return nil, err
			}
		}
		state[column.Field] = fieldValue
	}
	return state, nil
}

// assembleEntity reconstructs an entity from its cacheable representation.
func (orm *ORM) assembleEntity(metadata Metadata, entity Entity, state map[string]interface{}) error {
	value := reflect.Indirect(reflect.ValueOf(entity))
	for _, column := range metadata.Columns {
		cached, ok := state[column.Field]
		if !ok {
			return fmt.Errorf("Cached state of entity '%s' is missing column field '%s' .", metadata.Entity, column.Field)
		}
		if column.Type != "" {
			userType, err := orm.registry.MustLookup(column.Type)
			if err != nil {
				return err
			}
			if cached, err = userType.Assemble(cached, entity); err != nil {
				return err
			}
		}
		if err := tools.SetFieldValue(value.FieldByName(column.Field), cached); err != nil {
			return err
		}
	}
	return nil
}
