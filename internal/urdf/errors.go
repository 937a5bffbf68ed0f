package urdf

import "errors"

var (
	// ErrNoBaseLink means no link qualifies as the tree root.
	ErrNoBaseLink = errors.New("no base link")
	// ErrAmbiguousBase means several links are never a joint child.
	ErrAmbiguousBase = errors.New("ambiguous base link")
	// ErrInvalid marks structurally invalid documents.
	ErrInvalid = errors.New("invalid robot description")
)
