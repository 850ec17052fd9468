package retina

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch is returned when batch sizes disagree or a tensor does not have the configured geometry.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrOutOfBoundsPatch is returned when some location in [-1, 1]² would read outside the padded image.
	// New checks this for the worst case, so Foveate never sees it unless the geometry was tampered with.
	ErrOutOfBoundsPatch = errors.New("patch extends beyond the padded image")

	// ErrInvalidLocation is returned for NaN or infinite location coordinates.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrBadGeometry is returned when the patch sizes cannot be resized to a common side length.
	ErrBadGeometry = errors.New("bad retina geometry")
)
