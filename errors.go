package orm

type EntityNotRegisteredError string

func (n EntityNotRegisteredError) Error() string {
	return string(n)
}

// AmbiguousEntityNameError is returned when an instance belongs to a type
// registered under several entity names and no resolver could pick one.
type AmbiguousEntityNameError string

func (n AmbiguousEntityNameError) Error() string {
	return string(n)
}

type TypeNotRegisteredError string

func (n TypeNotRegisteredError) Error() string {
	return string(n)
}

type NotAPointerError string

func (n NotAPointerError) Error() string {
	return string(n)
}

type NotASliceError string

func (n NotASliceError) Error() string {
	if t := string(n); t == "" {
		return "Slice or Array expected"
	} else {
		return t
	}
}

type RelationNotHandled string

func (n RelationNotHandled) Error() string {
	return string(n)
}
