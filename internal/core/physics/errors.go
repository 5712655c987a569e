package physics

import "errors"

var (
	// ErrInvalidAxis reports a sweep axis outside x, y, z.
	ErrInvalidAxis = errors.New("physics: invalid sweep axis")
	// ErrInputMismatch reports box and label slices of different lengths.
	ErrInputMismatch = errors.New("physics: boxes and labels differ in length")
	// ErrInvalidConfig reports an unusable stepper configuration.
	ErrInvalidConfig = errors.New("physics: invalid stepper config")
	// ErrAlreadyRunning reports a second Run on a live stepper.
	ErrAlreadyRunning = errors.New("physics: stepper already running")
)
