package geofence

// Sentinel errors for the evaluation flow. DeviceNotFound and
// RepositoryUnavailable are terminal for one Evaluate call; shape and
// persistence failures are collected per geofence into the Result instead.
var (
	ErrDeviceNotFound        = &EvaluationError{"device not found"}
	ErrStaleSample           = &EvaluationError{"location sample is older than the last processed sample"}
	ErrRepositoryUnavailable = &EvaluationError{"repository unavailable"}
)

// EvaluationError represents an evaluation error
type EvaluationError struct {
	msg string
}

func (e *EvaluationError) Error() string {
	return e.msg
}
