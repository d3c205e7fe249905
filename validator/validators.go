package validator

import (
	"fmt"

	orm "github.com/nivruth-naka/hibernate-orm"
)

// ValidationError allows to collect
// multiple errors from different validators.
type ValidationError interface {
	// Append a new error to the errors map
	Append(key, value string)
}

// Errors is a basic ValidationError implementation
type Errors map[string][]string

func (errors Errors) Append(key, value string) {
	errors[key] = append(errors[key], value)
}

func (errors Errors) HasErrors() bool {
	return len(errors) > 0
}

// Repository is the subset of the orm repository used by validators
type Repository interface {
	Count(query orm.Query) (int64, error)
}

// UniqueEntityValidator is valid when the validated entity is unique
type UniqueEntityValidator struct {
	Repository
}

// NewUniqueEntityValidator creates a new UniqueEntityValidator
func NewUniqueEntityValidator(repository Repository) *UniqueEntityValidator {
	return &UniqueEntityValidator{repository}
}

// Validate does validate, values are used to find a potential duplicate
// example :
//
//	validator.Validate("Email",map[string]interface{}{"Email":user.Email},errors)
//
// will add an error to errors if another entity in the database has the same Email field value
func (provider UniqueEntityValidator) Validate(field string, values map[string]interface{}, errors ValidationError) {
	count, err := provider.Repository.Count(buildQuery(values))
	if err != nil {
		errors.Append(field, err.Error())
		return
	}
	if count != 0 {
		errors.Append(field, "is already taken.")
	}
}

// EntityExistsValidator validates the fact
// that the targeted entity exists in the database
type EntityExistsValidator struct {
	Repository
}

// NewEntityExistsValidator returns an new EntityExistsValidator
func NewEntityExistsValidator(repository Repository) *EntityExistsValidator {
	return &EntityExistsValidator{repository}
}

// Validate does validate
func (provider EntityExistsValidator) Validate(field string, kind string, values map[string]interface{}, errors ValidationError) {
	count, err := provider.Repository.Count(buildQuery(values))
	if err != nil {
		errors.Append(field, err.Error())
		return
	}
	if count == 0 {
		errors.Append(field, fmt.Sprintf("%s with fields matching %v does not exist", kind, values))
	}
}

func buildQuery(values map[string]interface{}) orm.Query {
	where := []string{}
	params := []interface{}{}
	for key, value := range values {
		if len(where) > 0 {
			where = append(where, "AND")
		}
		where = append(where, key, "=", "?")
		params = append(params, value)
	}
	return orm.Query{Where: where, Params: params, Limit: 1}
}
