package orm

import (
	"fmt"
	"reflect"
	"strings"
)

// ORM maps registered entities to database tables. Mappings are keyed by
// entity name : a single Go type may be registered under several entity
// names, each with its own table metadata. Entity name resolvers decide
// which mapping an instance belongs to when it is ambiguous.
type ORM struct {
	connection  *Connection
	metadatas   map[string]Metadata
	entityTypes map[string]reflect.Type
	typeNames   map[reflect.Type][]string
	resolvers   []EntityNameResolver
	registry    *TypeRegistry
	cache       *RegionCache
	unityOfWork *UnityOfWork
}

func NewORM(connection *Connection) *ORM {
	return &ORM{
		connection:  connection,
		metadatas:   map[string]Metadata{},
		entityTypes: map[string]reflect.Type{},
		typeNames:   map[reflect.Type][]string{},
		registry:    NewTypeRegistry(),
		cache:       NewRegionCache(),
		unityOfWork: NewUnityOfWork(),
	}
}

func (orm *ORM) Connection() *Connection {
	return orm.connection
}

func (orm *ORM) UnityOfWork() *UnityOfWork {
	return orm.unityOfWork
}

// TypeRegistry returns the registry of UserType codecs used
// by hydration, binding and the second level cache.
func (orm *ORM) TypeRegistry() *TypeRegistry {
	return orm.registry
}

// RegisterType registers a UserType codec under a name that
// column metadata can reference.
func (orm *ORM) RegisterType(name string, userType UserType) {
	orm.registry.Register(name, userType)
}

// Cache returns the second level cache.
func (orm *ORM) Cache() *RegionCache {
	return orm.cache
}

// AddEntityNameResolver appends resolvers consulted, in order,
// when the entity name of an instance needs to be determined.
func (orm *ORM) AddEntityNameResolver(resolvers ...EntityNameResolver) {
	orm.resolvers = append(orm.resolvers, resolvers...)
}

// Register registers entities and makes a repository available for each
// of them. Metadata comes from the entity's ProvideMetadata method when it
// implements MetadataProvider, and from its struct tags otherwise.
func (orm *ORM) Register(entities ...Entity) error {
	for _, entity := range entities {
		var metadata Metadata
		var err error
		if provider, ok := entity.(MetadataProvider); ok {
			metadata = provider.ProvideMetadata()
		} else if metadata, err = BuildMetadata(entity); err != nil {
			return err
		}
		if err := orm.RegisterMetadata(entity, metadata); err != nil {
			return err
		}
	}
	return nil
}

func (orm *ORM) MustRegister(entities ...Entity) {
	if err := orm.Register(entities...); err != nil {
		panic(err)
	}
}

// RegisterMetadata registers an explicit mapping for the type of entity.
// Registering the same type again under a different entity name creates an
// additional mapping, instances then need an EntityNameResolver or an
// explicit name (PersistAs, RemoveAs) to be persisted.
func (orm *ORM) RegisterMetadata(entity Entity, metadata Metadata) error {
	if strings.TrimSpace(metadata.Entity) == "" {
		return fmt.Errorf("Cannot register entity %#v without an entity name.", entity)
	}
	if _, exists := orm.metadatas[metadata.Entity]; exists {
		return fmt.Errorf("An entity named '%s' is already registered.", metadata.Entity)
	}
	for _, column := range metadata.Columns {
		if column.Type != "" {
			if _, err := orm.registry.MustLookup(column.Type); err != nil {
				return err
			}
		}
	}
	Type := reflect.TypeOf(entity)
	orm.metadatas[metadata.Entity] = metadata
	orm.entityTypes[metadata.Entity] = Type
	orm.typeNames[Type] = append(orm.typeNames[Type], metadata.Entity)
	return nil
}

// ResolveEntityName determines the entity name of an instance. Registered
// resolvers are consulted first, then the instance itself when it implements
// EntityNameProvider, finally the sole mapping registered for its type.
func (orm *ORM) ResolveEntityName(entity Entity) (string, error) {
	for _, resolver := range orm.resolvers {
		if name := resolver.ResolveEntityName(entity); name != "" {
			if _, ok := orm.metadatas[name]; !ok {
				return "", EntityNotRegisteredError(fmt.Sprintf("Resolver returned unregistered entity name '%s' for %#v .", name, entity))
			}
			return name, nil
		}
	}
	if provider, ok := entity.(EntityNameProvider); ok {
		if name := provider.EntityName(); name != "" {
			if _, ok := orm.metadatas[name]; !ok {
				return "", EntityNotRegisteredError(fmt.Sprintf("Entity name '%s' provided by %#v is not registered.", name, entity))
			}
			return name, nil
		}
	}
	names := orm.typeNames[reflect.TypeOf(entity)]
	switch len(names) {
	case 0:
		return "", EntityNotRegisteredError(fmt.Sprintf("No mapping registered for type %s .", reflect.TypeOf(entity)))
	case 1:
		return names[0], nil
	default:
		return "", AmbiguousEntityNameError(fmt.Sprintf("Type %s is mapped as %v, an EntityNameResolver is needed to pick one.", reflect.TypeOf(entity), names))
	}
}

func (orm *ORM) GetMetadataByEntityName(entityName string) (Metadata, bool) {
	metadata, ok := orm.metadatas[strings.Trim(entityName, "\r\n\t ")]
	return metadata, ok
}

// GetTypeMetadata returns the metadata of the sole mapping registered for a
// type, or a zero Metadata when the type is unregistered or multi mapped.
func (orm *ORM) GetTypeMetadata(Type reflect.Type) Metadata {
	if names := orm.typeNames[Type]; len(names) == 1 {
		return orm.metadatas[names[0]]
	}
	return Metadata{}
}

// GetEntityMetadata resolves the metadata of an instance
// through ResolveEntityName.
func (orm *ORM) GetEntityMetadata(entity Entity) (Metadata, error) {
	name, err := orm.ResolveEntityName(entity)
	if err != nil {
		return Metadata{}, err
	}
	return orm.metadatas[name], nil
}

func (orm *ORM) HasTypeMetadata(Type reflect.Type) bool {
	return len(orm.typeNames[Type]) > 0
}

func (orm *ORM) HasEntityMetadata(entity Entity) bool {
	return orm.HasTypeMetadata(reflect.TypeOf(entity))
}

// TypeForEntityName returns the Go type registered under an entity name.
func (orm *ORM) TypeForEntityName(entityName string) (reflect.Type, bool) {
	Type, ok := orm.entityTypes[entityName]
	return Type, ok
}

// GetRepository resolves a repository from an entity or returns an error
func (orm *ORM) GetRepository(entity Entity) (*Repository, error) {
	name, err := orm.ResolveEntityName(entity)
	if err != nil {
		return nil, err
	}
	return NewRepository(name, orm)
}

// MustGetRepository gets a repository from an entity or panics on error
func (orm *ORM) MustGetRepository(entity Entity) *Repository {
	repository, err := orm.GetRepository(entity)
	if err != nil {
		panic(err)
	}
	return repository
}

// GetRepositoryByEntityName finds a repository by entity name
func (orm *ORM) GetRepositoryByEntityName(entityName string) (*Repository, error) {
	return NewRepository(entityName, orm)
}

// GetRepositoryByTableName gets a repository according to a table name.
func (orm *ORM) GetRepositoryByTableName(tableName string) (*Repository, error) {
	for name, metadata := range orm.metadatas {
		if tableName == metadata.TableName() {
			return NewRepository(name, orm)
		}
	}
	return nil, fmt.Errorf("Repository not found for table '%s' .", tableName)
}

// Persist schedules entities for insertion or update depending
// on whether their id column is set.
func (orm *ORM) Persist(entities ...Entity) *ORM {
	for _, entity := range entities {
		name, err := orm.ResolveEntityName(entity)
		if err != nil {
			orm.unityOfWork.fail(err)
			continue
		}
		orm.persistAs(name, entity)
	}
	return orm
}

// PersistAs schedules an entity under an explicit entity name,
// bypassing resolution. Needed when a type is mapped several times.
func (orm *ORM) PersistAs(entityName string, entity Entity) *ORM {
	if _, ok := orm.metadatas[entityName]; !ok {
		orm.unityOfWork.fail(EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName)))
		return orm
	}
	orm.persistAs(entityName, entity)
	return orm
}

func (orm *ORM) persistAs(entityName string, entity Entity) {
	if orm.resolveId(entityName, entity) == 0 {
		orm.unityOfWork.Create(entityName, entity)
	} else {
		orm.unityOfWork.Update(entityName, entity)
	}
}

// Remove schedules entities for deletion.
func (orm *ORM) Remove(entities ...Entity) *ORM {
	for _, entity := range entities {
		name, err := orm.ResolveEntityName(entity)
		if err != nil {
			orm.unityOfWork.fail(err)
			continue
		}
		orm.unityOfWork.Delete(name, entity)
	}
	return orm
}

// RemoveAs schedules an entity for deletion under an explicit entity name.
func (orm *ORM) RemoveAs(entityName string, entity Entity) *ORM {
	if _, ok := orm.metadatas[entityName]; !ok {
		orm.unityOfWork.fail(EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName)))
		return orm
	}
	orm.unityOfWork.Delete(entityName, entity)
	return orm
}

func (orm *ORM) Flush() error {
	return orm.unityOfWork.Flush(orm)
}

func (orm *ORM) MustFlush() {
	if err := orm.Flush(); err != nil {
		panic(err)
	}
}

// Merge copies the state of a detached entity onto a freshly loaded managed
// instance and schedules the managed instance for update. Columns converted
// by a UserType go through the codec's Replace method, which decides the
// value kept in the managed copy.
func (orm *ORM) Merge(entity Entity) (Entity, error) {
	name, err := orm.ResolveEntityName(entity)
	if err != nil {
		return nil, err
	}
	metadata := orm.metadatas[name]
	id := orm.resolveId(name, entity)
	if id == 0 {
		return nil, fmt.Errorf("Cannot merge entity '%s' without an id, use Persist instead.", name)
	}
	repository, err := orm.GetRepositoryByEntityName(name)
	if err != nil {
		return nil, err
	}
	managed := reflect.New(orm.entityTypes[name].Elem()).Interface()
	if err := repository.Find(id, managed); err != nil {
		return nil, err
	}
	detachedValue := reflect.Indirect(reflect.ValueOf(entity))
	managedValue := reflect.Indirect(reflect.ValueOf(managed))
	for _, column := range metadata.Columns {
		if column.ID {
			continue
		}
		detachedField := detachedValue.FieldByName(column.Field)
		managedField := managedValue.FieldByName(column.Field)
		merged := detachedField.Interface()
		if column.Type != "" {
			userType, err := orm.registry.MustLookup(column.Type)
			if err != nil {
				return nil, err
			}
			merged = userType.Replace(detachedField.Interface(), managedField.Interface(), entity)
		}
		managedField.Set(reflect.ValueOf(merged))
	}
	orm.unityOfWork.Update(name, managed)
	return managed, nil
}

// resolveId gets and returns the value of the Primary Key column
// from the model
func (orm *ORM) resolveId(entityName string, entity Entity) int64 {
	metadata := orm.metadatas[entityName]
	value := reflect.Indirect(reflect.ValueOf(entity))
	return value.FieldByName(metadata.FindIdColumn().Field).Int()
}
