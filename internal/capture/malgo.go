package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoOpener opens the default capture device through miniaudio.
type MalgoOpener struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoOpener initializes the audio backend context.
func NewMalgoOpener() (*MalgoOpener, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("init audio context: %w", err))
	}
	return &MalgoOpener{ctx: ctx}, nil
}

// Close releases the audio backend context.
func (o *MalgoOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil
	}
	err := o.ctx.Uninit()
	o.ctx.Free()
	o.ctx = nil
	return err
}

// Open initializes the default capture device in S16 format.
func (o *MalgoOpener) Open(format Format, cb Callbacks) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return nil, fmt.Errorf("%w: audio context closed", ErrHardwareUnavailable)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	d := &malgoDevice{}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if cb.Data != nil && len(input) > 0 {
				cb.Data(append([]byte(nil), input...))
			}
		},
		Stop: func() {
			if d.expectStop() || cb.Stopped == nil {
				return
			}
			// miniaudio forbids device calls from its own callbacks.
			go cb.Stopped(fmt.Errorf("%w: audio device stopped", ErrHardwareUnavailable))
		},
	}

	dev, err := malgo.InitDevice(o.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("init capture device: %w", err))
	}
	d.dev = dev
	return d, nil
}

type malgoDevice struct {
	dev *malgo.Device

	mu       sync.Mutex
	stopping bool
}

func (d *malgoDevice) expectStop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopping
}

func (d *malgoDevice) Start() error {
	d.mu.Lock()
	d.stopping = false
	d.mu.Unlock()
	if err := d.dev.Start(); err != nil {
		return classifyOpenError(fmt.Errorf("start capture device: %w", err))
	}
	return nil
}

func (d *malgoDevice) Stop() error {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
	return d.dev.Stop()
}

func (d *malgoDevice) Close() error {
	d.mu.Lock()
	d.stopping = true
	d.mu.Unlock()
	d.dev.Uninit()
	return nil
}
