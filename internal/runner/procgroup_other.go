//go:build !unix

package runner

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable; context
// cancellation kills the direct child and WaitDelay bounds the pipe wait.
func killProcessGroup(cmd *exec.Cmd) {}
