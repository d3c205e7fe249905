package orm

import (
	"fmt"
	"reflect"
	"strings"
)

// scheduledEntity is an entity queued for flushing along with
// the entity name it was scheduled under.
type scheduledEntity struct {
	entityName string
	entity     Entity
}

// UnityOfWork tracks entities scheduled for creation, update and deletion
// and flushes all pending changes in a single transaction. It also keeps a
// snapshot of the persistent state of loaded entities, updates only touch
// the columns whose value actually changed since loading.
type UnityOfWork struct {
	created   []scheduledEntity
	updated   []scheduledEntity
	deleted   []scheduledEntity
	snapshots map[Entity]map[string]interface{}
	errors    []error
}

func NewUnityOfWork() *UnityOfWork {
	return &UnityOfWork{snapshots: map[Entity]map[string]interface{}{}}
}

func (u *UnityOfWork) Create(entityName string, entities ...Entity) {
	for _, entity := range entities {
		u.created = append(u.created, scheduledEntity{entityName, entity})
	}
}

func (u *UnityOfWork) Update(entityName string, entities ...Entity) {
	for _, entity := range entities {
		u.updated = append(u.updated, scheduledEntity{entityName, entity})
	}
}

func (u *UnityOfWork) Delete(entityName string, entities ...Entity) {
	for _, entity := range entities {
		u.deleted = append(u.deleted, scheduledEntity{entityName, entity})
	}
}

// RegisterLoaded records the loading snapshot of an entity,
// the basis for dirty checking at flush time.
func (u *UnityOfWork) RegisterLoaded(entityName string, entity Entity, snapshot map[string]interface{}) {
	u.snapshots[entity] = snapshot
}

// SnapshotOf returns the loading snapshot of an entity, if tracked.
func (u *UnityOfWork) SnapshotOf(entity Entity) (map[string]interface{}, bool) {
	snapshot, ok := u.snapshots[entity]
	return snapshot, ok
}

// fail records a scheduling error that will surface on the next Flush.
func (u *UnityOfWork) fail(err error) {
	u.errors = append(u.errors, err)
}

// Flush writes all pending changes in one transaction and resets the queues.
// When a scheduling error was recorded the flush is aborted, the queues are
// reset and the first error is returned.
func (u *UnityOfWork) Flush(orm *ORM) error {
	if len(u.errors) > 0 {
		err := u.errors[0]
		u.reset()
		return err
	}
	transaction, err := orm.Connection().BeginTransaction()
	if err != nil {
		return err
	}
	for _, scheduled := range u.created {
		if err := u.insertEntity(orm, transaction, scheduled.entityName, scheduled.entity); err != nil {
			transaction.Rollback()
			return err
		}
	}
	for _, scheduled := range u.updated {
		if err := u.updateEntity(orm, transaction, scheduled.entityName, scheduled.entity); err != nil {
			transaction.Rollback()
			return err
		}
	}
	for _, scheduled := range u.deleted {
		if err := u.deleteEntity(orm, transaction, scheduled.entityName, scheduled.entity); err != nil {
			transaction.Rollback()
			return err
		}
	}
	if err := transaction.Commit(); err != nil {
		return err
	}
	u.reset()
	return nil
}

func (u *UnityOfWork) reset() {
	u.created = nil
	u.updated = nil
	u.deleted = nil
	u.errors = nil
}

func (u *UnityOfWork) insertEntity(orm *ORM, transaction *Transaction, entityName string, entity Entity) error {
	if listener, ok := entity.(BeforeCreateListener); ok {
		if err := listener.BeforeCreate(); err != nil {
			return err
		}
	}
	metadata, ok := orm.GetMetadataByEntityName(entityName)
	if !ok {
		return EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName))
	}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	columns := []string{}
	values := []interface{}{}
	for _, column := range metadata.Columns {
		if column.ID {
			continue
		}
		value, err := orm.bindColumnValue(column, entityValue.FieldByName(column.Field).Interface())
		if err != nil {
			return err
		}
		columns = append(columns, metadata.ResolveColumnNameFor(column))
		values = append(values, value)
	}
	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s);",
		metadata.TableName(),
		strings.Join(columns, ","),
		strings.Join(
			strings.Split(strings.Repeat("?", len(columns)), ""), ","))
	result, err := transaction.Exec(query, values...)
	if err != nil {
		return err
	}
	lastInsertedId, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entityValue.FieldByName(metadata.FindIdColumn().Field).SetInt(lastInsertedId)
	if err := u.cascadePersist(orm, transaction, metadata, entity); err != nil {
		return err
	}
	if listener, ok := entity.(AfterCreateListener); ok {
		if err := listener.AfterCreate(); err != nil {
			return err
		}
	}
	u.snapshots[entity] = orm.snapshotEntity(metadata, entity)
	return nil
}

func (u *UnityOfWork) updateEntity(orm *ORM, transaction *Transaction, entityName string, entity Entity) error {
	if listener, ok := entity.(BeforeUpdateListener); ok {
		if err := listener.BeforeUpdate(); err != nil {
			return err
		}
	}
	metadata, ok := orm.GetMetadataByEntityName(entityName)
	if !ok {
		return EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName))
	}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	idColumn := metadata.FindIdColumn()
	id := entityValue.FieldByName(idColumn.Field).Interface()
	snapshot, tracked := u.snapshots[entity]

	assignments := []string{}
	values := []interface{}{}
	for _, column := range metadata.Columns {
		if column.ID {
			continue
		}
		current := entityValue.FieldByName(column.Field).Interface()
		if tracked && orm.columnEquals(column, current, snapshot[column.Field]) {
			continue
		}
		value, err := orm.bindColumnValue(column, current)
		if err != nil {
			return err
		}
		assignments = append(assignments, metadata.ResolveColumnNameFor(column)+" = ?")
		values = append(values, value)
	}
	if len(assignments) > 0 {
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?;",
			metadata.TableName(),
			strings.Join(assignments, ", "),
			metadata.ResolveColumnNameFor(idColumn))
		values = append(values, id)
		result, err := transaction.Exec(query, values...)
		if err != nil {
			return err
		}
		if _, err := result.RowsAffected(); err != nil {
			return err
		}
		if listener, ok := entity.(AfterUpdateListener); ok {
			if err := listener.AfterUpdate(); err != nil {
				return err
			}
		}
		u.snapshots[entity] = orm.snapshotEntity(metadata, entity)
		if metadata.Cached {
			orm.Cache().Evict(metadata.Entity, entityValue.FieldByName(idColumn.Field).Int())
		}
	}
	return u.cascadePersist(orm, transaction, metadata, entity)
}

func (u *UnityOfWork) deleteEntity(orm *ORM, transaction *Transaction, entityName string, entity Entity) error {
	if listener, ok := entity.(BeforeRemoveListener); ok {
		if err := listener.BeforeRemove(); err != nil {
			return err
		}
	}
	metadata, ok := orm.GetMetadataByEntityName(entityName)
	if !ok {
		return EntityNotRegisteredError(fmt.Sprintf("No entity registered under the name '%s' .", entityName))
	}
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	idColumn := metadata.FindIdColumn()
	id := entityValue.FieldByName(idColumn.Field).Interface()
	if err := u.cascadeRemove(orm, transaction, metadata, entity); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?;",
		metadata.TableName(), metadata.ResolveColumnNameFor(idColumn))
	if _, err := transaction.Exec(query, id); err != nil {
		return err
	}
	if listener, ok := entity.(AfterRemoveListener); ok {
		if err := listener.AfterRemove(); err != nil {
			return err
		}
	}
	if metadata.Cached {
		orm.Cache().Evict(metadata.Entity, entityValue.FieldByName(idColumn.Field).Int())
	}
	delete(u.snapshots, entity)
	return nil
}

// cascadePersist persists the owned side of relations carrying the Persist
// cascade. The foreign key field of each owned entity is pointed at the
// owner before it is inserted or updated. Only OneToMany and OneToOne
// relations cascade, the many side of a ManyToOne owns nothing.
func (u *UnityOfWork) cascadePersist(orm *ORM, transaction *Transaction, metadata Metadata, entity Entity) error {
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	ownerId := entityValue.FieldByName(metadata.FindIdColumn().Field).Int()
	for _, relation := range metadata.Relations {
		if relation.Cascade&Persist == 0 {
			continue
		}
		if relation.Type != OneToMany && relation.Type != OneToOne {
			continue
		}
		targetMetadata, ok := orm.GetMetadataByEntityName(relation.TargetEntity)
		if !ok {
			return EntityNotRegisteredError(fmt.Sprintf("Relation '%s' of entity '%s' targets unregistered entity '%s' .", relation.Field, metadata.Entity, relation.TargetEntity))
		}
		fieldValue := entityValue.FieldByName(relation.Field)
		owned := []reflect.Value{}
		switch relation.Type {
		case OneToMany:
			for i := 0; i < fieldValue.Len(); i++ {
				owned = append(owned, fieldValue.Index(i))
			}
		case OneToOne:
			if !fieldValue.IsNil() {
				owned = append(owned, fieldValue)
			}
		}
		for _, ownedValue := range owned {
			reflect.Indirect(ownedValue).FieldByName(relation.IndexedBy).SetInt(ownerId)
			ownedEntity := ownedValue.Interface()
			ownedId := reflect.Indirect(ownedValue).FieldByName(targetMetadata.FindIdColumn().Field).Int()
			var err error
			if ownedId == 0 {
				err = u.insertEntity(orm, transaction, relation.TargetEntity, ownedEntity)
			} else {
				err = u.updateEntity(orm, transaction, relation.TargetEntity, ownedEntity)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// cascadeRemove deletes the owned rows of relations carrying the Remove
// cascade with a single DELETE per relation.
func (u *UnityOfWork) cascadeRemove(orm *ORM, transaction *Transaction, metadata Metadata, entity Entity) error {
	entityValue := reflect.Indirect(reflect.ValueOf(entity))
	ownerId := entityValue.FieldByName(metadata.FindIdColumn().Field).Interface()
	for _, relation := range metadata.Relations {
		if relation.Cascade&Remove == 0 {
			continue
		}
		if relation.Type != OneToMany && relation.Type != OneToOne {
			continue
		}
		targetMetadata, ok := orm.GetMetadataByEntityName(relation.TargetEntity)
		if !ok {
			return EntityNotRegisteredError(fmt.Sprintf("Relation '%s' of entity '%s' targets unregistered entity '%s' .", relation.Field, metadata.Entity, relation.TargetEntity))
		}
		foreignKeyColumn := targetMetadata.ResolveColumnNameByFieldName(relation.IndexedBy)
		if foreignKeyColumn == "" {
			return fmt.Errorf("No column found for foreign key field '%s' in entity '%s' .", relation.IndexedBy, relation.TargetEntity)
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?;", targetMetadata.TableName(), foreignKeyColumn)
		if _, err := transaction.Exec(query, ownerId); err != nil {
			return err
		}
		if targetMetadata.Cached {
			orm.Cache().EvictRegion(targetMetadata.Entity)
		}
	}
	return nil
}
