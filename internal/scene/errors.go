package scene

import "fmt"

// ValidationError reports a malformed scene or source field.
// The model is left unchanged when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown scene or source identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// LastSceneError is returned when deleting the only remaining scene.
type LastSceneError struct {
	SceneID SceneID
}

func (e *LastSceneError) Error() string {
	return fmt.Sprintf("scene %q is the last scene and cannot be deleted", e.SceneID)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func sceneNotFound(id SceneID) *NotFoundError {
	return &NotFoundError{Kind: "scene", ID: string(id)}
}

func sourceNotFound(id SourceID) *NotFoundError {
	return &NotFoundError{Kind: "source", ID: string(id)}
}
