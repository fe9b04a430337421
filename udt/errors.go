package udt

import "fmt"

// ErrorKind categorizes conversion failures.
type ErrorKind int

const (
	// KindSchemaMismatch means the declared type cannot describe a struct value.
	KindSchemaMismatch ErrorKind = iota + 1
	// KindDataAccess means the driver failed while reading attributes.
	KindDataAccess
	// KindUnsupportedType means an attribute has no coercion for its declared tag.
	KindUnsupportedType
)

func (k ErrorKind) String() string {
	switch k {
	case KindSchemaMismatch:
		return "schema mismatch"
	case KindDataAccess:
		return "data access"
	case KindUnsupportedType:
		return "unsupported type"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ApplicationError is returned for every failed conversion. SQLType is the
// database type name of the struct value that failed, when the driver could
// report it.
type ApplicationError struct {
	Kind     ErrorKind
	TypeName string
	SQLType  string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *ApplicationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ApplicationError) Unwrap() error {
	return e.Cause
}

// IsKind checks if the error is of a specific kind
func (e *ApplicationError) IsKind(kind ErrorKind) bool {
	return e.Kind == kind
}

func schemaMismatch(st *StructType) *ApplicationError {
	return &ApplicationError{
		Kind:     KindSchemaMismatch,
		TypeName: st.Name,
		Message:  "specified record is not compatible with the declared structured type " + st.Name,
	}
}

func dataAccess(st *StructType, cause error) *ApplicationError {
	return &ApplicationError{
		Kind:     KindDataAccess,
		TypeName: st.Name,
		Message:  "error while retrieving data to create " + st.Name + " record",
		Cause:    cause,
	}
}

func unsupported(st *StructType, tag TypeTag, value any) *ApplicationError {
	return &ApplicationError{
		Kind:     KindUnsupportedType,
		TypeName: st.Name,
		Message:  fmt.Sprintf("unsupported attribute type in %s: cannot convert %T to %s", st.Name, value, tag),
	}
}
