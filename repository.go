package orm

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/nivruth-naka/hibernate-orm/tools"
)

// Repository is a repository of entities sharing one mapping.
// A repository belongs to a single entity name, two mappings of the
// same Go type get two distinct repositories.
type Repository struct {
	connection *Connection
	metadata   Metadata
	entityName string
	idField    string
	tableName  string
	aType      reflect.Type
	orm        *ORM
}

// NewRepository creates the repository of the entity registered
// under entityName.
func NewRepository(entityName string, orm *ORM) (*Repository, error) {
	metadata, ok := orm.GetMetadataByEntityName(entityName)
	if !ok {
		return nil, EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName))
	}
	Type, _ := orm.TypeForEntityName(entityName)
	return &Repository{
		connection: orm.Connection(),
		metadata:   metadata,
		entityName: metadata.Entity,
		idField:    metadata.FindIdColumn().Field,
		tableName:  metadata.TableName(),
		aType:      Type,
		orm:        orm,
	}, nil
}

// EntityName returns the entity name the repository manages
func (repository *Repository) EntityName() string {
	return repository.entityName
}

// TableName returns the table name for the repository
func (repository *Repository) TableName() string {
	return repository.tableName
}

// Type return the type of entity managed by the repository
func (repository *Repository) Type() reflect.Type {
	return repository.aType
}

// IDField returns the Id field in an entity managed by the repository
func (repository *Repository) IDField() string {
	return repository.idField
}

// ORM returns the ORM associated with the repository
func (repository *Repository) ORM() *ORM {
	return repository.orm
}

func (repository *Repository) Metadata() Metadata {
	return repository.metadata
}

// All finds all
func (repository *Repository) All(collection Collection) error {
	return repository.FindBy(Query{}, collection)
}

// Find finds an entity by id. Entities mapped with Cached metadata are read
// through the second level cache : a hit reassembles the entity from its
// cached state without touching the database.
func (repository *Repository) Find(id Any, entity Entity) error {
	cacheKey, keyOk := toInt64(id)
	if repository.metadata.Cached && keyOk {
		if state, ok := repository.orm.Cache().Get(repository.entityName, cacheKey); ok {
			if err := repository.orm.assembleEntity(repository.metadata, entity, state); err != nil {
				return err
			}
			repository.orm.UnityOfWork().RegisterLoaded(repository.entityName, entity, repository.orm.snapshotEntity(repository.metadata, entity))
			return repository.resolveRelationsSingle(entity, nil)
		}
	}
	err := repository.FindOneBy(Query{Where: []string{repository.idField, "=", "?"}, Params: []interface{}{id}, Limit: 1}, entity)
	if err != nil {
		return err
	}
	if repository.metadata.Cached && keyOk {
		state, err := repository.orm.disassembleEntity(repository.metadata, entity)
		if err != nil {
			return err
		}
		repository.orm.Cache().Put(repository.entityName, cacheKey, state)
	}
	return nil
}

// FindOneBy finds one entity filtered by a query and resolves
// the non lazy relations declared in its metadata
func (repository *Repository) FindOneBy(query Query, entity Entity) error {
	joinFetched := repository.joinFetchRelations()
	rows, err := repository.fetchRows(query, joinFetched)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return sql.ErrNoRows
	}
	if err := repository.hydrateRow(rows[0], entity, joinFetched); err != nil {
		return err
	}
	return repository.resolveRelationsSingle(entity, joinFetched)
}

// FindBy finds entities according to a query, resolving non lazy relations
// with their declared fetch strategy : join fetched relations were already
// loaded in the main statement, subselect relations are loaded with one
// batched query for the whole collection, select relations with one query
// per entity.
func (repository *Repository) FindBy(query Query, collection Collection) error {
	joinFetched := repository.joinFetchRelations()
	rows, err := repository.fetchRows(query, joinFetched)
	if err != nil {
		return err
	}
	collectionPointer := reflect.ValueOf(collection)
	if collectionPointer.Kind() != reflect.Ptr {
		return NotAPointerError(fmt.Sprintf("Pointer to slice expected, got %#v", collection))
	}
	collectionValue := collectionPointer.Elem()
	if collectionValue.Kind() != reflect.Slice {
		return NotASliceError(fmt.Sprintf("Slice or Array expected, got %#v", collection))
	}
	for _, row := range rows {
		entityPointer := reflect.New(repository.aType.Elem())
		if err := repository.hydrateRow(row, entityPointer.Interface(), joinFetched); err != nil {
			return err
		}
		collectionValue = reflect.Append(collectionValue, entityPointer)
	}
	collectionPointer.Elem().Set(collectionValue)
	return repository.resolveRelations(collection, joinFetched)
}

// Execute statement
func (repository *Repository) Execute(query Query) (sql.Result, error) {
	q, params, err := query.BuildQuery(repository)
	if err != nil {
		return nil, err
	}
	return repository.connection.Exec(q, params...)
}

// Count counts the number of rows
// that match the query
func (repository *Repository) Count(query Query) (int64, error) {
	query.Select = []string{""}
	query.Aggregates = []Aggregate{{Type: COUNT, StructField: "TOTAL", On: repository.idField}}
	queryString, values, err := query.BuildQuery(repository)
	if err != nil {
		return 0, err
	}
	var result int64
	err = repository.connection.Get(&result, queryString, values...)
	if err != nil {
		return 0, err
	}
	return result, nil
}

// DeleteAll deletes all models
func (repository *Repository) DeleteAll() error {
	result, err := repository.connection.Exec(fmt.Sprintf("DELETE FROM %s;", repository.tableName))
	if err != nil {
		return err
	}
	if _, err := result.RowsAffected(); err != nil {
		return err
	}
	if repository.metadata.Cached {
		repository.orm.Cache().EvictRegion(repository.entityName)
	}
	return nil
}

// LoadRelation loads the relation held by fieldName into an entity. This is
// how lazy relations get loaded on demand, it always issues a separate
// SELECT regardless of the declared fetch strategy.
func (repository *Repository) LoadRelation(entity Entity, fieldName string) error {
	if reflect.TypeOf(entity) != repository.aType {
		return fmt.Errorf("The repository (%s) doesn't manage entities of type %v", repository.aType, entity)
	}
	relation, resolved := repository.metadata.ResolveRelationForFieldName(fieldName)
	if !resolved {
		return fmt.Errorf("Relation not found for field name '%s' in entity %s ", fieldName, repository.entityName)
	}
	return repository.loadRelationSingle(relation, entity)
}

// fetchRows builds and runs the SELECT, with join fetched relations folded
// into the statement, and drains the result into one map per row keyed by
// field alias.
func (repository *Repository) fetchRows(query Query, joinFetched []Relation) ([]map[string]interface{}, error) {
	query.joinFetch = joinFetched
	queryString, values, err := query.BuildQuery(repository)
	if err != nil {
		return nil, err
	}
	rows, err := repository.connection.Queryx(queryString, values...)
	if err != nil {
		return nil, err
	}
	return tools.ScanRowsToMaps(rows)
}

// hydrateRow populates an entity from a row map, materializes the entities
// of join fetched relations from their prefixed aliases, registers loading
// snapshots and fills the second level cache region when the mapping asks
// for it.
func (repository *Repository) hydrateRow(row map[string]interface{}, entity Entity, joinFetched []Relation) error {
	base := map[string]interface{}{}
	nested := map[string]map[string]interface{}{}
	for alias, value := range row {
		if relationField, targetField, ok := splitJoinAlias(alias); ok {
			if nested[relationField] == nil {
				nested[relationField] = map[string]interface{}{}
			}
			nested[relationField][targetField] = value
			continue
		}
		base[alias] = value
	}
	if err := repository.orm.hydrateEntity(repository.metadata, entity, base); err != nil {
		return err
	}
	repository.orm.UnityOfWork().RegisterLoaded(repository.entityName, entity, repository.orm.snapshotEntity(repository.metadata, entity))
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	for _, relation := range joinFetched {
		targetRow, ok := nested[relation.Field]
		if !ok {
			continue
		}
		targetRepository, err := repository.orm.GetRepositoryByEntityName(relation.TargetEntity)
		if err != nil {
			return err
		}
		// an absent optional association scans as a nil id
		if targetRow[targetRepository.idField] == nil {
			continue
		}
		targetPointer := reflect.New(targetRepository.aType.Elem())
		if err := repository.orm.hydrateEntity(targetRepository.metadata, targetPointer.Interface(), targetRow); err != nil {
			return err
		}
		repository.orm.UnityOfWork().RegisterLoaded(relation.TargetEntity, targetPointer.Interface(), repository.orm.snapshotEntity(targetRepository.metadata, targetPointer.Interface()))
		entityValue.FieldByName(relation.Field).Set(targetPointer)
	}
	return nil
}

// joinFetchRelations returns the non lazy relations loaded through a JOIN
// in the main statement. Join fetch only makes sense for single valued
// associations, a join fetched collection falls back to subselect.
func (repository *Repository) joinFetchRelations() []Relation {
	relations := []Relation{}
	for _, relation := range repository.metadata.Relations {
		if relation.Lazy || relation.Fetch != FetchJoin {
			continue
		}
		if relation.Type == ManyToOne || relation.Type == OneToOne {
			relations = append(relations, relation)
		}
	}
	return relations
}

func isJoinFetched(joinFetched []Relation, relation Relation) bool {
	for _, candidate := range joinFetched {
		if candidate.Field == relation.Field {
			return true
		}
	}
	return false
}

// resolveRelations applies the declared fetch strategy of every non lazy
// relation to a freshly loaded collection.
func (repository *Repository) resolveRelations(collection Collection, joinFetched []Relation) error {
	for _, relation := range repository.metadata.Relations {
		if relation.Lazy || isJoinFetched(joinFetched, relation) {
			continue
		}
		var err error
		switch {
		case relation.Fetch == FetchSubselect || (relation.Fetch == FetchJoin && relation.Type == OneToMany):
			err = repository.resolveSubselect(relation, collection)
		default:
			err = repository.resolveSelect(relation, collection)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// resolveRelationsSingle is resolveRelations for a single entity, used by
// FindOneBy and by cache hits, where no statement level join happened.
func (repository *Repository) resolveRelationsSingle(entity Entity, joinFetched []Relation) error {
	for _, relation := range repository.metadata.Relations {
		if relation.Lazy || isJoinFetched(joinFetched, relation) {
			continue
		}
		if err := repository.loadRelationSingle(relation, entity); err != nil {
			return err
		}
	}
	return nil
}

func (repository *Repository) loadRelationSingle(relation Relation, entity Entity) error {
	switch relation.Type {
	case OneToMany:
		return repository.loadOneToManySingle(relation, entity)
	case OneToOne:
		return repository.loadOneToOneSingle(relation, entity)
	case ManyToOne:
		return repository.loadManyToOneSingle(relation, entity)
	}
	return RelationNotHandled(fmt.Sprintf("The relation %v is not handled", relation))
}

// resolveSubselect loads the targets of a relation for a whole collection
// with a single batched IN query.
func (repository *Repository) resolveSubselect(relation Relation, collection Collection) error {
	collectionValue := reflect.Indirect(reflect.ValueOf(collection))
	if reflect.Slice != collectionValue.Kind() && reflect.Array != collectionValue.Kind() {
		return NotASliceError(fmt.Sprintf("Slice or Array expected, got %v", collection))
	}
	if collectionValue.Len() == 0 {
		return nil
	}
	targetRepository, err := repository.orm.GetRepositoryByEntityName(relation.TargetEntity)
	if err != nil {
		return err
	}
	switch relation.Type {
	case OneToMany, OneToOne:
		return repository.subselectOwned(relation, collectionValue, targetRepository)
	case ManyToOne:
		return repository.subselectOwners(relation, collectionValue, targetRepository)
	}
	return RelationNotHandled(fmt.Sprintf("The relation %v is not handled by subselect fetching", relation))
}

// subselectOwned batches the owned side of OneToMany and OneToOne relations :
// the foreign key lives on the target, one IN query over the collection ids.
func (repository *Repository) subselectOwned(relation Relation, collectionValue reflect.Value, targetRepository *Repository) error {
	ids := []interface{}{}
	for i := 0; i < collectionValue.Len(); i++ {
		entityValue := reflect.Indirect(collectionValue.Index(i))
		ids = append(ids, entityValue.FieldByName(repository.idField).Interface())
	}
	whereQuery := []string{relation.IndexedBy, "IN", "("}
	for range ids {
		whereQuery = append(whereQuery, "?", ",")
	}
	whereQuery[len(whereQuery)-1] = ")"

	slicePointer := newSliceOf(targetRepository.aType)
	err := targetRepository.findBare(Query{Where: whereQuery, Params: ids, OrderBy: map[string]Order{relation.IndexedBy: ASC}}, slicePointer.Interface())
	if err != nil {
		return err
	}
	// group the fetched targets by owner id
	owned := map[interface{}][]reflect.Value{}
	sliceValue := slicePointer.Elem()
	for i := 0; i < sliceValue.Len(); i++ {
		target := sliceValue.Index(i)
		ownerId := reflect.Indirect(target).FieldByName(relation.IndexedBy).Interface()
		owned[ownerId] = append(owned[ownerId], target)
	}
	for i := 0; i < collectionValue.Len(); i++ {
		entityValue := reflect.Indirect(collectionValue.Index(i))
		targets := owned[entityValue.FieldByName(repository.idField).Interface()]
		switch relation.Type {
		case OneToMany:
			fieldValue := reflect.MakeSlice(reflect.SliceOf(targetRepository.aType), 0, len(targets))
			fieldValue = reflect.Append(fieldValue, targets...)
			entityValue.FieldByName(relation.Field).Set(fieldValue)
		case OneToOne:
			if len(targets) > 0 {
				entityValue.FieldByName(relation.Field).Set(targets[0])
			}
		}
	}
	return nil
}

// subselectOwners batches ManyToOne relations : the foreign key lives on the
// entities themselves, one IN query over the distinct foreign key values.
func (repository *Repository) subselectOwners(relation Relation, collectionValue reflect.Value, targetRepository *Repository) error {
	seen := map[interface{}]bool{}
	ids := []interface{}{}
	for i := 0; i < collectionValue.Len(); i++ {
		entityValue := reflect.Indirect(collectionValue.Index(i))
		id := entityValue.FieldByName(relation.IndexedBy).Interface()
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	whereQuery := []string{targetRepository.idField, "IN", "("}
	for range ids {
		whereQuery = append(whereQuery, "?", ",")
	}
	whereQuery[len(whereQuery)-1] = ")"

	slicePointer := newSliceOf(targetRepository.aType)
	err := targetRepository.findBare(Query{Where: whereQuery, Params: ids}, slicePointer.Interface())
	if err != nil {
		return err
	}
	owners := map[interface{}]reflect.Value{}
	sliceValue := slicePointer.Elem()
	for i := 0; i < sliceValue.Len(); i++ {
		target := sliceValue.Index(i)
		owners[reflect.Indirect(target).FieldByName(targetRepository.idField).Interface()] = target
	}
	for i := 0; i < collectionValue.Len(); i++ {
		entityValue := reflect.Indirect(collectionValue.Index(i))
		if owner, ok := owners[entityValue.FieldByName(relation.IndexedBy).Interface()]; ok {
			entityValue.FieldByName(relation.Field).Set(owner)
		}
	}
	return nil
}

// resolveSelect loads the targets of a relation with one query per entity
// of the collection.
func (repository *Repository) resolveSelect(relation Relation, collection Collection) error {
	collectionValue := reflect.Indirect(reflect.ValueOf(collection))
	if reflect.Slice != collectionValue.Kind() && reflect.Array != collectionValue.Kind() {
		return NotASliceError(fmt.Sprintf("Slice or Array expected, got %v", collection))
	}
	for i := 0; i < collectionValue.Len(); i++ {
		if err := repository.loadRelationSingle(relation, collectionValue.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (repository *Repository) loadOneToManySingle(relation Relation, entity Entity) error {
	targetRepository, err := repository.orm.GetRepositoryByEntityName(relation.TargetEntity)
	if err != nil {
		return err
	}
	slicePointer := newSliceOf(targetRepository.aType)
	err = targetRepository.findBare(
		Query{Where: []string{relation.IndexedBy, "=", "?"},
			Params: []interface{}{repository.resolveID(entity)},
		}, slicePointer.Interface(),
	)
	if err != nil {
		return err
	}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	entityValue.FieldByName(relation.Field).Set(slicePointer.Elem())
	return nil
}

func (repository *Repository) loadOneToOneSingle(relation Relation, entity Entity) error {
	targetRepository, err := repository.orm.GetRepositoryByEntityName(relation.TargetEntity)
	if err != nil {
		return err
	}
	slicePointer := newSliceOf(targetRepository.aType)
	err = targetRepository.findBare(
		Query{Where: []string{relation.IndexedBy, "=", "?"}, Params: []interface{}{repository.resolveID(entity)}, Limit: 1},
		slicePointer.Interface(),
	)
	if err != nil {
		return err
	}
	if slicePointer.Elem().Len() > 0 {
		entityValue := reflect.Indirect(reflect.ValueOf(entity))
		entityValue.FieldByName(relation.Field).Set(slicePointer.Elem().Index(0))
	}
	return nil
}

func (repository *Repository) loadManyToOneSingle(relation Relation, entity Entity) error {
	targetRepository, err := repository.orm.GetRepositoryByEntityName(relation.TargetEntity)
	if err != nil {
		return err
	}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	foreignKey := entityValue.FieldByName(relation.IndexedBy)
	if foreignKey.Int() == 0 {
		return nil
	}
	slicePointer := newSliceOf(targetRepository.aType)
	err = targetRepository.findBare(
		Query{Where: []string{targetRepository.idField, "=", "?"}, Params: []interface{}{foreignKey.Interface()}, Limit: 1},
		slicePointer.Interface(),
	)
	if err != nil {
		return err
	}
	if slicePointer.Elem().Len() > 0 {
		entityValue.FieldByName(relation.Field).Set(slicePointer.Elem().Index(0))
	}
	return nil
}

// findBare finds entities without resolving their relations,
// used by the relation loaders to avoid fetch cycles.
func (repository *Repository) findBare(query Query, collection Collection) error {
	rows, err := repository.fetchRows(query, nil)
	if err != nil {
		return err
	}
	collectionPointer := reflect.ValueOf(collection)
	collectionValue := collectionPointer.Elem()
	for _, row := range rows {
		entityPointer := reflect.New(repository.aType.Elem())
		if err := repository.hydrateRow(row, entityPointer.Interface(), nil); err != nil {
			return err
		}
		collectionValue = reflect.Append(collectionValue, entityPointer)
	}
	collectionPointer.Elem().Set(collectionValue)
	return nil
}

// resolveID gets and returns the value of the Primary Key column
// from the model
func (repository *Repository) resolveID(entity Entity) Any {
	value := reflect.Indirect(reflect.ValueOf(entity))
	return value.FieldByName(repository.idField).Interface()
}

// newSliceOf returns a pointer to an empty addressable slice of Type.
// See http://stackoverflow.com/questions/25384640/why-golang-reflect-makeslice-returns-un-addressable-value
func newSliceOf(Type reflect.Type) reflect.Value {
	slice := reflect.MakeSlice(reflect.SliceOf(Type), 0, 0)
	pointer := reflect.New(slice.Type())
	pointer.Elem().Set(slice)
	return pointer
}

// splitJoinAlias splits a "RelationField__TargetField" select alias
// produced by join fetching.
func splitJoinAlias(alias string) (relationField, targetField string, ok bool) {
	if index := strings.Index(alias, "__"); index > 0 {
		return alias[:index], alias[index+2:], true
	}
	return "", "", false
}

func toInt64(id Any) (int64, bool) {
	switch value := id.(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case int32:
		return int64(value), true
	default:
		return 0, false
	}
}
