package controller

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a trigger arrives while a cycle is running. The
// trigger is dropped, not queued.
var ErrBusy = errors.New("capture already in progress")

// ErrClosed is returned by triggers that arrive after Close
var ErrClosed = errors.New("controller closed")

// ErrCameraInactive is returned by operations that need an open camera
var ErrCameraInactive = errors.New("camera is not active")

// DeviceError wraps a failure to open or read the camera
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed upload or analyze call
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means the model answered but no reading could be extracted
type ParseError struct {
	Response string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
