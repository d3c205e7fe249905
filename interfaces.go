package orm

import "reflect"

// MetadataProvider is implemented by entities that declare
// their own mapping metadata.
type MetadataProvider interface {
	ProvideMetadata() Metadata
}

// Entity is a single entity managed by the ORM. An entity either
// implements MetadataProvider or declares its mapping through
// struct tags (see BuildMetadata).
type Entity interface{}

// Any is any type
type Any interface{}

// Collection is a collection of entities
type Collection interface{}

// EntityNameResolver determines the entity name for a given instance.
// A single type may be registered under several entity names, each with
// its own table mapping. Resolvers are consulted in registration order,
// an implementation returns "" when it does not know how to resolve the
// given instance.
type EntityNameResolver interface {
	ResolveEntityName(entity Entity) string
}

// EntityNameResolverFunc adapts a function to the EntityNameResolver interface.
type EntityNameResolverFunc func(entity Entity) string

func (f EntityNameResolverFunc) ResolveEntityName(entity Entity) string {
	return f(entity)
}

// EntityNameProvider is implemented by entities that carry
// their own entity name, typically in a struct field.
type EntityNameProvider interface {
	EntityName() string
}

// TableNamer overrides the table name derived by the tag based
// metadata builder.
type TableNamer interface {
	TableName() string
}

type BeforeCreateListener interface {
	BeforeCreate() error
}

type AfterCreateListener interface {
	AfterCreate() error
}
type BeforeUpdateListener interface {
	BeforeUpdate() error
}
type AfterUpdateListener interface {
	AfterUpdate() error
}

type BeforeRemoveListener interface {
	BeforeRemove() error
}

type AfterRemoveListener interface {
	AfterRemove() error
}

type RepositoryInterface interface {
	EntityName() string
	TableName() string
	IDField() string
	Type() reflect.Type
	ORM() *ORM
	Metadata() Metadata
}

type QueryBuilder interface {
	GetType() QueryType
	BuildQuery(RepositoryInterface) (string, []interface{}, error)
}

type Logger interface {
	Log(arguments ...interface{})
}
