// Package osexec implements subprocess execution functions
package osexec

import (
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Execute command and return stdout/stderr.
func Execute(cmd string, args []string, env []string) ([]byte, error) {
	execCmd := exec.Command(cmd, args...)

	// If env is not nil pointer, add env vars into subprocess cmd
	if env != nil {
		execCmd.Env = append(os.Environ(), env...)
	}

	// Start child process in its own process group so that interrupt signal will
	// not stop the command
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Execute command
	return execCmd.CombinedOutput()
}

// ExecuteContext executes a command with context and return stdout/stderr.
func ExecuteContext(ctx context.Context, cmd string, args []string, env []string) ([]byte, error) {
	execCmd := exec.CommandContext(ctx, cmd, args...)

	// If env is not nil pointer, add env vars into subprocess cmd
	if env != nil {
		execCmd.Env = append(os.Environ(), env...)
	}

	// Start child process in its own process group so that interrupt signal will
	// not stop the command
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Execute command
	return execCmd.CombinedOutput()
}

// ExecuteWithTimeout executes a command with timeout and return stdout/stderr.
func ExecuteWithTimeout(cmd string, args []string, timeout int, env []string) ([]byte, error) {
	ctx := context.Background()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
		defer cancel()
	}

	return ExecuteContext(ctx, cmd, args, env)
}
