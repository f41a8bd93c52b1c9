// Package capture owns the microphone and slices captured audio into
// fixed-length segments.
package capture

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrHardwareUnavailable is returned when no usable audio input exists.
	ErrHardwareUnavailable = errors.New("audio input hardware unavailable")

	// ErrPermissionDenied is returned when the platform refuses microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Format describes raw PCM audio. Samples are signed 16-bit little endian.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the PCM data rate.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Callbacks receive device activity. Data may be called on a realtime
// audio thread and must not block. Stopped is called when the device stops
// on its own, for example when it is unplugged.
type Callbacks struct {
	Data    func(pcm []byte)
	Stopped func(err error)
}

// Device is an opened audio input.
type Device interface {
	Start() error
	Stop() error
	Close() error
}

// Opener acquires an audio input device.
type Opener interface {
	Open(format Format, cb Callbacks) (Device, error)
}

// classifyOpenError maps platform failures onto the capture sentinels.
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrHardwareUnavailable) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"access denied", "permission", "not authorized", "unauthorized"} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrHardwareUnavailable, err)
}

// ExclusiveOpener allows at most one open device at a time.
type ExclusiveOpener struct {
	inner Opener

	mu   sync.Mutex
	held bool
}

// NewExclusiveOpener wraps inner so the microphone has a single owner.
func NewExclusiveOpener(inner Opener) *ExclusiveOpener {
	return &ExclusiveOpener{inner: inner}
}

// Open opens the device, failing with ErrHardwareUnavailable while another
// owner holds it.
func (o *ExclusiveOpener) Open(format Format, cb Callbacks) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.held {
		return nil, fmt.Errorf("%w: microphone is in use by another capture", ErrHardwareUnavailable)
	}

	dev, err := o.inner.Open(format, cb)
	if err != nil {
		return nil, err
	}
	o.held = true
	return &exclusiveDevice{Device: dev, release: o.release}, nil
}

func (o *ExclusiveOpener) release() {
	o.mu.Lock()
	o.held = false
	o.mu.Unlock()
}

type exclusiveDevice struct {
	Device
	once    sync.Once
	release func()
}

func (d *exclusiveDevice) Close() error {
	err := d.Device.Close()
	d.once.Do(d.release)
	return err
}

// LazyOpener builds its inner opener on the first Open, so processes that
// never capture audio never initialize the audio backend. A failed build is
// retried on the next Open.
type LazyOpener struct {
	build func() (Opener, error)

	mu    sync.Mutex
	inner Opener
}

// NewLazyOpener creates an opener that calls build on first use.
func NewLazyOpener(build func() (Opener, error)) *LazyOpener {
	return &LazyOpener{build: build}
}

func (o *LazyOpener) Open(format Format, cb Callbacks) (Device, error) {
	o.mu.Lock()
	if o.inner == nil {
		inner, err := o.build()
		if err != nil {
			o.mu.Unlock()
			return nil, classifyOpenError(err)
		}
		o.inner = inner
	}
	inner := o.inner
	o.mu.Unlock()

	return inner.Open(format, cb)
}

// Close releases the inner opener if it was built and holds resources.
func (o *LazyOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.inner.(io.Closer); ok {
		o.inner = nil
		return c.Close()
	}
	return nil
}
