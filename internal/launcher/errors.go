package launcher

import "fmt"

// LaunchFailure reports that the Java executable could not be started:
// it does not exist, is not executable, or the OS refused to spawn it.
type LaunchFailure struct {
	JavaPath string
	Err      error
}

func (e *LaunchFailure) Error() string {
	return fmt.Sprintf("launch failed: %s: %v", e.JavaPath, e.Err)
}

func (e *LaunchFailure) Unwrap() error { return e.Err }
