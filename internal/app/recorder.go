package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPermissionDenied means the OS refused microphone access; recording does
// not start and there is no automatic retry.
var ErrPermissionDenied = errors.New("microphone permission denied")

// DeviceError is any other capture-device failure (missing recorder binary,
// device busy, truncated capture).
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureDevice is the raw microphone. Start acquires it exclusively; Stop
// releases it and returns whatever was captured. Implementations must
// release the device even when Stop fails.
type CaptureDevice interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

type RecorderState int

const (
	RecIdle RecorderState = iota
	RecRecording
)

// Recorder drives microphone capture as an explicit state machine:
// Idle -> Recording -> Idle, holding at most one encoded artifact. The
// device is acquired only in Start and released unconditionally in Stop.
type Recorder struct {
	dev CaptureDevice

	mu          sync.Mutex
	state       RecorderState
	artifact    string
	hasArtifact bool
	lastErr     error

	elapsed  atomic.Int64 // seconds since Start
	stopTick chan struct{}
}

func NewRecorder(dev CaptureDevice) *Recorder {
	return &Recorder{dev: dev}
}

func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the microphone and begins capture. A Start while already
// Recording is a no-op; the single active recording continues. Starting a
// new recording discards any unsent previous artifact.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecRecording {
		return nil
	}
	if err := r.dev.Start(ctx); err != nil {
		r.lastErr = err
		return err
	}
	r.state = RecRecording
	r.artifact = ""
	r.hasArtifact = false
	r.lastErr = nil
	r.elapsed.Store(0)
	r.stopTick = make(chan struct{})
	go r.tick(r.stopTick)
	return nil
}

func (r *Recorder) tick(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.elapsed.Add(1)
		case <-stop:
			return
		}
	}
}

// Stop releases the microphone, finalizes the clip and encodes it. Calling
// Stop while not recording is a no-op. A device failure on Stop is held as
// the recorder's last error instead of an artifact; the device is released
// either way.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecRecording {
		return
	}
	close(r.stopTick)
	r.stopTick = nil
	r.state = RecIdle

	raw, err := r.dev.Stop()
	if err != nil {
		r.lastErr = &DeviceError{Err: err}
		return
	}
	r.artifact = EncodeMedia(raw)
	r.hasArtifact = true
}

// Discard drops the held artifact without touching device state.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifact = ""
	r.hasArtifact = false
}

// Artifact returns the encoded clip from the last completed recording.
func (r *Recorder) Artifact() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact, r.hasArtifact
}

// TakeArtifact returns the held clip and clears it, for attaching to a send.
func (r *Recorder) TakeArtifact() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	artifact, ok := r.artifact, r.hasArtifact
	r.artifact = ""
	r.hasArtifact = false
	return artifact, ok
}

// Err returns the last absorbed device failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Elapsed is the running recording time, advancing once per second.
func (r *Recorder) Elapsed() time.Duration {
	return time.Duration(r.elapsed.Load()) * time.Second
}
