package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-import/engine/model"
	"github.com/pkg/errors"
)

// ErrorKind classifies an import failure.
type ErrorKind int

const (
	// ErrParse is a malformed container. Fatal.
	ErrParse ErrorKind = iota + 1
	// ErrRequiredExtensionUnsupported is a required extension that cannot be executed. Fatal.
	ErrRequiredExtensionUnsupported
	// ErrReferenceOutOfRange is an index or byte range pointing outside its target. Fatal.
	ErrReferenceOutOfRange
	// ErrMissingOptionalCapability is an unavailable optional decoder. Recoverable.
	ErrMissingOptionalCapability
	// ErrUnsupportedTopology is a non-triangle primitive. Recoverable.
	ErrUnsupportedTopology
	// ErrInvalidSkin is a skin with no joints or mismatched bind matrices. Recoverable.
	ErrInvalidSkin
	// ErrAnimationChannel is a channel that failed to decode. Recoverable.
	ErrAnimationChannel
	// ErrIO is a failed read or fetch. Fatal.
	ErrIO
	// ErrInvalidData is structurally valid but semantically unusable data. Fatal.
	ErrInvalidData
)

// ErrCancelled is returned when an import is cancelled through its context.
// Cancellation is a terminal outcome, not an ImportError.
var ErrCancelled = errors.New("import cancelled")

var errorKindNames = map[ErrorKind]string{
	ErrParse:                        "parse error",
	ErrRequiredExtensionUnsupported: "required extension unsupported",
	ErrReferenceOutOfRange:          "reference out of range",
	ErrMissingOptionalCapability:    "missing optional capability",
	ErrUnsupportedTopology:          "unsupported topology",
	ErrInvalidSkin:                  "invalid skin",
	ErrAnimationChannel:             "animation channel error",
	ErrIO:                           "io error",
	ErrInvalidData:                  "invalid data",
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Recoverable reports whether the pipeline continues past an error of this kind.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case ErrMissingOptionalCapability, ErrUnsupportedTopology, ErrInvalidSkin, ErrAnimationChannel:
		return true
	}
	return false
}

// Entity names used in ImportError.
const (
	entityDocument  = "document"
	entityExtension = "extension"
	entityBuffer    = "buffer"
	entityView      = "bufferView"
	entityAccessor  = "accessor"
	entityImage     = "image"
	entityTexture   = "texture"
	entityMaterial  = "material"
	entityMesh      = "mesh"
	entityNode      = "node"
	entityScene     = "scene"
	entitySkin      = "skin"
	entityAnimation = "animation"
)

// ImportError is a classified import failure with the entity it concerns.
type ImportError struct {
	// Kind is the failure class.
	Kind ErrorKind

	// Entity is the entity kind, e.g. "accessor".
	Entity string

	// Index is the entity index, -1 for document-level failures.
	Index int

	// Err is the underlying cause.
	Err error
}

func (e *ImportError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s: %s %d: %v", e.Kind, e.Entity, e.Index, e.Err)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Cause exposes the cause to errors.Cause.
func (e *ImportError) Cause() error {
	return e.Err
}

// warning converts the error into the warning recorded on the model.
func (e *ImportError) warning() model.ImportWarning {
	return model.ImportWarning{
		Kind:    e.Kind.String(),
		Entity:  e.Entity,
		Index:   e.Index,
		Message: e.Err.Error(),
	}
}

// newImportError builds an ImportError with a formatted cause.
func newImportError(kind ErrorKind, entity string, index int, format string, args ...any) *ImportError {
	return &ImportError{Kind: kind, Entity: entity, Index: index, Err: errors.Errorf(format, args...)}
}

// wrapImportError classifies err. An err that already is an ImportError is returned unchanged.
func wrapImportError(kind ErrorKind, entity string, index int, err error, msg string) error {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		return err
	}
	return &ImportError{Kind: kind, Entity: entity, Index: index, Err: errors.Wrap(err, msg)}
}

// KindOf returns the ErrorKind carried by err.
//
// Parameters:
//   - err: any error returned by the loader
//
// Returns:
//   - ErrorKind: the kind, zero when err is not an ImportError
//   - bool: true if err is (or wraps) an ImportError
func KindOf(err error) (ErrorKind, bool) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return 0, false
}
