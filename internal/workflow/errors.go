package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for precondition failures. Each aborts the run before any
// network call is made.
var (
	ErrUnknownKind          = errors.New("unknown workflow kind")
	ErrMissingInpaintAssets = errors.New("inpainting requires an original image and a mask")
	ErrMissingSketchAsset   = errors.New("canvas sketch requires a drawn sketch")
	ErrMissingSourceImage   = errors.New("workflow requires a source image")
)

// RoleMismatchError reports a role map entry whose target node does not exist
// in the template, or targets a node of an unsupported class. Injection fails
// closed on it: submitting a graph with stale defaults would silently produce
// the wrong image.
type RoleMismatchError struct {
	Kind   Kind
	Role   string
	NodeID string
	Reason string
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("workflow %s: role %q -> node %q: %s", e.Kind, e.Role, e.NodeID, e.Reason)
}
