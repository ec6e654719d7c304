package errors

import "fmt"

// Load error codes (LOD001-099)
const (
	// ErrMalformedDatabase indicates the database could not be decoded
	ErrMalformedDatabase ErrorCode = "LOD001"
	// ErrUnsupportedSource indicates an unknown database source scheme
	ErrUnsupportedSource ErrorCode = "LOD002"
	// ErrUnknownRecord indicates a get by id found no record
	ErrUnknownRecord ErrorCode = "LOD003"
	// ErrUnreadableSource indicates the database source could not be reached or read
	ErrUnreadableSource ErrorCode = "LOD004"
)

// Type error codes (TYP100-199)
const (
	// ErrUnknownPropertyType indicates a property type tag outside the known union
	ErrUnknownPropertyType ErrorCode = "TYP101"
	// ErrDanglingReference indicates a reference to a type definition that does not exist
	ErrDanglingReference ErrorCode = "TYP102"
)

// Service resolution error codes (SVC200-299)
const (
	// ErrServiceNotFound indicates no service matches a namespace
	ErrServiceNotFound ErrorCode = "SVC201"
	// ErrAmbiguousService indicates more than one service matches a namespace
	ErrAmbiguousService ErrorCode = "SVC202"
	// ErrInvalidTypeName indicates a resource type name without a namespace
	ErrInvalidTypeName ErrorCode = "SVC203"
)

// Ownership error codes (OWN300-399)
const (
	// ErrOrphanTypeDefinition indicates a type definition with no resolvable owner
	ErrOrphanTypeDefinition ErrorCode = "OWN301"
)

// NewMalformedDatabase creates a LOD001 error
func NewMalformedDatabase(source string, cause error) *CompilerError {
	return newError(
		ErrMalformedDatabase,
		"malformed_database",
		CategoryLoad,
		SeverityError,
		"Specification database could not be decoded",
	).WithSource(source).WithCause(cause)
}

// NewUnsupportedSource creates a LOD002 error
func NewUnsupportedSource(source, scheme string) *CompilerError {
	return errorf(ErrUnsupportedSource, "unsupported_source", CategoryLoad,
		"Unsupported database source scheme %q", scheme).
		WithSource(source).
		WithExpected("file path, s3://, sqlite3://, postgres:// or pgx://")
}

// NewUnreadableSource creates a LOD004 error
func NewUnreadableSource(source string, cause error) *CompilerError {
	return newError(
		ErrUnreadableSource,
		"unreadable_source",
		CategoryLoad,
		SeverityError,
		"Specification database source could not be read",
	).WithSource(source).WithCause(cause).
		WithSuggestion("Check that the file exists or that the object store or database is reachable")
}

// NewUnknownRecord creates a LOD003 error
func NewUnknownRecord(kind, id string) *CompilerError {
	return errorf(ErrUnknownRecord, "unknown_record", CategoryLoad,
		"No %s with id %q", kind, id)
}

// NewUnknownPropertyType creates a TYP101 error
func NewUnknownPropertyType(subject, tag string) *CompilerError {
	return errorf(ErrUnknownPropertyType, "unknown_property_type", CategoryType,
		"Unknown property type %q", tag).
		WithSubject(subject).
		WithExpected("string, boolean, number, integer, date-time, json, null, tag, ref, array, map, union").
		WithActual(tag).
		WithSuggestion("Regenerate the database with a schema version this tool understands")
}

// NewDanglingReference creates a TYP102 error
func NewDanglingReference(subject, id string) *CompilerError {
	return errorf(ErrDanglingReference, "dangling_reference", CategoryType,
		"Reference to unknown type definition %q", id).
		WithSubject(subject)
}

// NewServiceNotFound creates a SVC201 error
func NewServiceNotFound(subject, namespace string) *CompilerError {
	return errorf(ErrServiceNotFound, "service_not_found", CategoryService,
		"No service declares namespace %q", namespace).
		WithSubject(subject).
		WithExpected("exactly one matching service").
		WithActual("0")
}

// NewAmbiguousService creates a SVC202 error
func NewAmbiguousService(subject, namespace string, matches []string) *CompilerError {
	return errorf(ErrAmbiguousService, "ambiguous_service", CategoryService,
		"Namespace %q matches more than one service", namespace).
		WithSubject(subject).
		WithExpected("exactly one matching service").
		WithActual(fmt.Sprintf("%d: %v", len(matches), matches))
}

// NewInvalidTypeName creates a SVC203 error
func NewInvalidTypeName(typeName string) *CompilerError {
	return errorf(ErrInvalidTypeName, "invalid_type_name", CategoryService,
		"Resource type name %q has no service namespace", typeName).
		WithSubject(typeName).
		WithExpected("<Provider>::<Service>::<Resource>")
}

// NewOrphanTypeDefinition creates an OWN301 error
func NewOrphanTypeDefinition(id, name string) *CompilerError {
	return errorf(ErrOrphanTypeDefinition, "orphan_type_definition", CategoryOwnership,
		"Type definition %q (%s) is not referenced by any resource and has no preceding owner", name, id).
		WithSubject(id).
		WithSuggestion("Reference the type from a resource, or order it after a type its owner references")
}
