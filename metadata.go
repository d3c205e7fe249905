package orm

import (
	"encoding/json"
	"reflect"
	"strings"
)

// RelationType is an enum
type RelationType int8

const (
	_ RelationType = iota
	ManyToOne
	ManyToMany
	OneToOne
	OneToMany
)

// String returns the name of the relation type as a string
func (relation RelationType) String() string {
	switch relation {
	case ManyToOne:
		return "ManyToOne"
	case ManyToMany:
		return "ManyToMany"
	case OneToOne:
		return "OneToOne"
	case OneToMany:
		return "OneToMany"
	default:
		return ""
	}
}

// Cascade represents how related datas are handled
// when then entity is persisted or removed
type Cascade byte

const (
	// Persist automatically persists related entities when an entity is saved
	Persist Cascade = 0x01
	// Remove automatically removes related entities when an entity is removed
	Remove Cascade = 0x02
)

// FetchMode is the strategy used to load the target of a relation.
type FetchMode int8

const (
	// FetchSelect loads the target with a separate SELECT per owning entity.
	FetchSelect FetchMode = iota
	// FetchJoin loads the target in the owner's own SELECT through an SQL JOIN.
	// Only ManyToOne and OneToOne relations can be join fetched, a join fetch
	// declared on a collection falls back to FetchSubselect.
	FetchJoin
	// FetchSubselect loads the targets of a whole result collection
	// with a single batched SELECT ... WHERE fk IN (...) .
	FetchSubselect
)

// String returns the name of the fetch mode as a string
func (fetch FetchMode) String() string {
	switch fetch {
	case FetchJoin:
		return "join"
	case FetchSubselect:
		return "subselect"
	default:
		return "select"
	}
}

// Table is a  table metadata
type Table struct {
	Name string
}

// Column is a column metadata
type Column struct {
	ID    bool
	Field string
	Name  string
	// Type is the name of a registered UserType used to convert
	// the field value to and from its column representation.
	// When empty the value is bound and scanned as is.
	Type string
}

// Relation Represents a relation between 2 entities
type Relation struct {
	// The Type of relation
	Type RelationType
	// The entity which is the target of the relation
	TargetEntity string
	MappedBy     string
	// IndexedBy names the foreign key field. It lives on the owned entity
	// for OneToMany and OneToOne, and on the entity itself for ManyToOne.
	IndexedBy string
	Cascade
	// Fetch is the strategy used to load the related entities.
	Fetch FetchMode
	// Lazy relations are left untouched by Find and FindBy,
	// they are loaded on demand with Repository.LoadRelation.
	Lazy bool
	// The field where to load the related entities
	// if needed.
	Field string
}

// Metadata represent metadatas for a DB Table
type Metadata struct {
	Entity    string
	Table     Table
	Columns   []Column
	Relations []Relation
	// Cached entities are read through the second level cache region
	// named after the entity.
	Cached bool
}

// MetadataFrom creates a metadata from a json string
// or returns an error
func MetadataFrom(jsonString string) (Metadata, error) {
	var meta Metadata
	err := json.Unmarshal([]byte(jsonString), &meta)
	return meta, err
}

// TableName returns the name of the table associated with the entity
func (meta Metadata) TableName() string {
	return strings.ToLower(meta.Table.Name)
}

func (meta Metadata) FindIdColumn() Column {
	var column Column
	for _, value := range meta.Columns {
		if value.ID {
			column = value
			break
		}
	}
	return column
}

func (meta Metadata) ResolveRelationForFieldName(fieldName string) (Relation, bool) {
	for _, relation := range meta.Relations {
		if relation.Field == fieldName {
			return relation, true
		}
	}
	return Relation{}, false
}

func (meta Metadata) ResolveColumnNameByFieldName(fieldName string) string {
	columnName := ""
	for _, column := range meta.Columns {
		if fieldName == column.Field {
			if column.Name != "" {
				columnName = column.Name
			} else {
				columnName = column.Field
			}
			break
		}
	}
	return strings.ToLower(columnName)
}

func (meta Metadata) ResolveColumnByFieldName(fieldName string) (Column, bool) {
	for _, column := range meta.Columns {
		if fieldName == column.Field {
			return column, true
		}
	}
	return Column{}, false
}

func (meta Metadata) BuildFieldValueMap(entity interface{}) map[string]interface{} {
	Set := map[string]interface{}{}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	for _, column := range meta.Columns {
		Set[column.Field] = entityValue.FieldByName(column.Field).Interface()
	}
	return Set
}

func (meta Metadata) ResolveColumnNameFor(column Column) (name string) {
	if column.Name == "" {
		name = column.Field
	} else {
		name = column.Name
	}
	return strings.ToLower(name)
}

func (meta Metadata) ResolveRelationForTargetEntity(entityName string) (Relation, bool) {
	if strings.Trim(entityName, " \n\t\r") != "" {
		for _, relation := range meta.Relations {
			if entityName == relation.TargetEntity {
				return relation, true
			}
		}
	}
	return Relation{}, false
}
