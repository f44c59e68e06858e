package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ExecCaptureDevice records through an external recorder command
// (arecord-style: writes the capture to the file path appended to its
// arguments, stops cleanly on SIGINT).
type ExecCaptureDevice struct {
	Command string

	cmd  *exec.Cmd
	done chan error
	path string
}

func NewExecCaptureDevice(command string) *ExecCaptureDevice {
	return &ExecCaptureDevice{Command: command}
}

func (d *ExecCaptureDevice) Start(ctx context.Context) error {
	fields := strings.Fields(d.Command)
	if len(fields) == 0 {
		return &DeviceError{Err: errors.New("no recorder command configured")}
	}
	d.path = filepath.Join(os.TempDir(), fmt.Sprintf("earthworm-rec-%d.wav", time.Now().UnixNano()))
	cmd := exec.Command(fields[0], append(fields[1:], d.path)...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return ErrPermissionDenied
		}
		return &DeviceError{Err: err}
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// Wait briefly so an immediately-exiting recorder (no device, bad args)
	// surfaces on Start instead of producing an empty clip on Stop.
	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return &DeviceError{Err: ctx.Err()}
	case err := <-done:
		_ = os.Remove(d.path)
		return &DeviceError{Err: fmt.Errorf("recorder exited immediately (%s): %v", d.Command, err)}
	case <-time.After(150 * time.Millisecond):
	}

	d.cmd = cmd
	d.done = done
	return nil
}

func (d *ExecCaptureDevice) Stop() ([]byte, error) {
	cmd, done := d.cmd, d.done
	d.cmd, d.done = nil, nil
	if cmd == nil {
		return nil, &DeviceError{Err: errors.New("device not started")}
	}
	_ = cmd.Process.Signal(os.Interrupt)
	<-done

	raw, err := os.ReadFile(d.path)
	_ = os.Remove(d.path)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty capture")
	}
	return raw, nil
}
