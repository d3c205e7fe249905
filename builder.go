package orm

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// tag options look like : id , lazy , column(author_id) , cascade(persist,remove)
var tagOptionPattern = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?$`)

// BuildMetadata builds mapping metadata from the struct tags of an entity.
// It is the declarative counterpart of MetadataProvider : each exported
// field may carry an `orm` tag describing its column or relation.
//
//	type Article struct {
//		ID       int64  `orm:"id"`
//		Title    string
//		AuthorID int64  `orm:"column(author_id)"`
//		Author   *User  `orm:"manyToOne(User);indexedBy(AuthorID);fetch(join)"`
//	}
//
// Untagged exported fields of scalar kinds become columns named after the
// lowercased field name. Untagged struct, pointer and slice fields are
// ignored. The entity name defaults to the struct type name and may be
// overridden by implementing EntityNameProvider, the table name defaults to
// the lowercased entity name and may be overridden by implementing TableNamer.
func BuildMetadata(entity Entity) (Metadata, error) {
	Type := reflect.Indirect(reflect.ValueOf(entity)).Type()
	if Type.Kind() != reflect.Struct {
		return Metadata{}, fmt.Errorf("Cannot build metadata from non struct entity %#v .", entity)
	}
	metadata := Metadata{Entity: Type.Name()}
	if provider, ok := entity.(EntityNameProvider); ok {
		if name := provider.EntityName(); name != "" {
			metadata.Entity = name
		}
	}
	metadata.Table = Table{Name: strings.ToLower(metadata.Entity)}
	if namer, ok := entity.(TableNamer); ok {
		metadata.Table.Name = namer.TableName()
	}
	for i := 0; i < Type.NumField(); i++ {
		field := Type.Field(i)
		if field.PkgPath != "" {
			continue
		}
		tag, tagged := field.Tag.Lookup("orm")
		if tag == "-" {
			continue
		}
		if !tagged {
			if isColumnKind(field.Type) {
				metadata.Columns = append(metadata.Columns, Column{Field: field.Name, ID: field.Name == "ID"})
			}
			continue
		}
		column, relation, isRelation, err := parseFieldTag(field.Name, tag)
		if err != nil {
			return Metadata{}, err
		}
		if isRelation {
			metadata.Relations = append(metadata.Relations, relation)
		} else {
			metadata.Columns = append(metadata.Columns, column)
		}
	}
	if metadata.FindIdColumn() == (Column{}) {
		return Metadata{}, fmt.Errorf("No id column found for entity '%s', tag a field with `orm:\"id\"` .", metadata.Entity)
	}
	return metadata, nil
}

// MustBuildMetadata builds metadata from struct tags or panics on error.
func MustBuildMetadata(entity Entity) Metadata {
	metadata, err := BuildMetadata(entity)
	if err != nil {
		panic(err)
	}
	return metadata
}

func parseFieldTag(fieldName, tag string) (Column, Relation, bool, error) {
	column := Column{Field: fieldName}
	relation := Relation{Field: fieldName}
	isRelation := false
	for _, option := range strings.Split(tag, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		parts := tagOptionPattern.FindStringSubmatch(option)
		if parts == nil {
			return column, relation, isRelation, fmt.Errorf("Invalid option '%s' in orm tag of field '%s' .", option, fieldName)
		}
		name, argument := parts[1], parts[2]
		switch name {
		case "id":
			column.ID = true
		case "column":
			column.Name = argument
		case "type":
			column.Type = argument
		case "oneToMany", "manyToOne", "oneToOne", "manyToMany":
			isRelation = true
			relation.TargetEntity = argument
			switch name {
			case "oneToMany":
				relation.Type = OneToMany
			case "manyToOne":
				relation.Type = ManyToOne
			case "oneToOne":
				relation.Type = OneToOne
			case "manyToMany":
				relation.Type = ManyToMany
			}
		case "indexedBy":
			relation.IndexedBy = argument
		case "mappedBy":
			relation.MappedBy = argument
		case "fetch":
			switch argument {
			case "select":
				relation.Fetch = FetchSelect
			case "join":
				relation.Fetch = FetchJoin
			case "subselect":
				relation.Fetch = FetchSubselect
			default:
				return column, relation, isRelation, fmt.Errorf("Unknown fetch mode '%s' in orm tag of field '%s' .", argument, fieldName)
			}
		case "lazy":
			relation.Lazy = true
		case "cascade":
			for _, cascade := range strings.Split(argument, ",") {
				switch strings.TrimSpace(cascade) {
				case "persist":
					relation.Cascade |= Persist
				case "remove":
					relation.Cascade |= Remove
				default:
					return column, relation, isRelation, fmt.Errorf("Unknown cascade '%s' in orm tag of field '%s' .", cascade, fieldName)
				}
			}
		default:
			return column, relation, isRelation, fmt.Errorf("Unknown option '%s' in orm tag of field '%s' .", name, fieldName)
		}
	}
	return column, relation, isRelation, nil
}

var timeType = reflect.TypeOf(time.Time{})

func isColumnKind(Type reflect.Type) bool {
	switch Type.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return Type.Elem().Kind() == reflect.Uint8
	case reflect.Struct:
		return Type == timeType
	default:
		return false
	}
}
