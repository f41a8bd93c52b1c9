package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/metrics"
)

// Segment is one fixed-length slice of captured audio. It is handed to the
// consumer exactly once and never stored.
type Segment struct {
	Seq       int
	Data      []byte
	Format    Format
	StartedAt time.Time
	Duration  time.Duration
}

// WAV returns the segment encoded as a WAV file.
func (s Segment) WAV() []byte {
	return EncodeWAV(s.Data, s.Format)
}

// Options configures a Controller.
type Options struct {
	Format   Format
	Interval time.Duration
	// OnSegment receives segments in capture order from a single goroutine.
	// The controller does not wait for processing; slow consumers should
	// hand work off.
	OnSegment func(Segment)
	// OnFailure is called once per failed start or device error.
	OnFailure func(error)
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Controller owns the microphone while active and emits one Segment per
// interval. Start and Stop are idempotent.
type Controller struct {
	opener Opener
	opts   Options

	mu       sync.Mutex
	active   bool
	gen      int
	dev      Device
	buf      []byte
	seq      int
	segStart time.Time
	quit     chan struct{}
}

// NewController creates an inactive controller.
func NewController(opener Opener, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = 4 * time.Second
	}
	if opts.Format.SampleRate == 0 {
		opts.Format.SampleRate = 16000
	}
	if opts.Format.Channels == 0 {
		opts.Format.Channels = 1
	}
	return &Controller{opener: opener, opts: opts}
}

// Active reports whether capture is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start acquires the device and begins emitting segments. It returns
// ErrHardwareUnavailable or ErrPermissionDenied (wrapped) when the device
// cannot be acquired; the controller then stays inactive.
func (c *Controller) Start() error {
	_, err := c.start()
	return err
}

// start reports whether this call acquired the device.
func (c *Controller) start() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return false, nil
	}

	c.gen++
	gen := c.gen

	dev, err := c.opener.Open(c.opts.Format, Callbacks{
		Data:    func(pcm []byte) { c.onData(gen, pcm) },
		Stopped: func(err error) { c.onDeviceStopped(gen, err) },
	})
	if err != nil {
		err = classifyOpenError(err)
		c.failLocked(err)
		return false, err
	}

	if err := dev.Start(); err != nil {
		_ = dev.Close()
		err = classifyOpenError(err)
		c.failLocked(err)
		return false, err
	}

	c.dev = dev
	c.active = true
	c.buf = c.buf[:0]
	c.seq = 0
	c.segStart = time.Now()
	c.quit = make(chan struct{})
	c.opts.Metrics.RecordCaptureActive(1)
	c.opts.Logger.Debug().Dur("interval", c.opts.Interval).Msg("capture started")

	go c.loop(gen, c.quit)
	return true, nil
}

// Stop halts emission and releases the device. Audio captured since the
// last segment is discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	dev := c.detachLocked()
	c.mu.Unlock()
	return c.release(dev)
}

// Run starts capture and holds it until ctx is done or the device fails.
// A capture started by Run is released on every return path; one that was
// already running is left to its owner.
func (c *Controller) Run(ctx context.Context) error {
	failed := make(chan error, 1)
	prev := c.opts.OnFailure
	c.mu.Lock()
	c.opts.OnFailure = func(err error) {
		if prev != nil {
			prev(err)
		}
		select {
		case failed <- err:
		default:
		}
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.opts.OnFailure = prev
		c.mu.Unlock()
	}()

	started, err := c.start()
	if err != nil {
		return err
	}
	if started {
		defer func() { _ = c.Stop() }()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	}
}

// detachLocked marks the controller inactive and returns the device to
// release. The device must be released without holding c.mu, since stopping
// waits for in-flight data callbacks that take the lock.
func (c *Controller) detachLocked() Device {
	if !c.active {
		return nil
	}

	c.active = false
	c.gen++
	close(c.quit)
	c.buf = c.buf[:0]

	dev := c.dev
	c.dev = nil

	c.opts.Metrics.RecordCaptureActive(-1)
	c.opts.Logger.Debug().Int("segments", c.seq).Msg("capture stopped")
	return dev
}

func (c *Controller) release(dev Device) error {
	if dev == nil {
		return nil
	}
	errStop := dev.Stop()
	errClose := dev.Close()
	if errStop != nil {
		return errStop
	}
	return errClose
}

func (c *Controller) failLocked(err error) {
	c.opts.Logger.Error().Err(err).Msg("capture failed")
	if fn := c.opts.OnFailure; fn != nil {
		go fn(err)
	}
}

func (c *Controller) onData(gen int, pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || gen != c.gen {
		return
	}
	c.buf = append(c.buf, pcm...)
}

func (c *Controller) onDeviceStopped(gen int, err error) {
	c.mu.Lock()
	if !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	dev := c.detachLocked()
	c.failLocked(err)
	c.mu.Unlock()

	_ = c.release(dev)
}

func (c *Controller) loop(gen int, quit <-chan struct{}) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C:
			seg, ok := c.cut(gen, now)
			if !ok {
				continue
			}
			c.opts.Metrics.RecordSegment("emitted")
			if c.opts.OnSegment != nil {
				c.opts.OnSegment(seg)
			}
		}
	}
}

// cut takes the buffered audio as the next segment.
func (c *Controller) cut(gen int, now time.Time) (Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || gen != c.gen {
		return Segment{}, false
	}

	start := c.segStart
	c.segStart = now
	if len(c.buf) == 0 {
		return Segment{}, false
	}

	data := make([]byte, len(c.buf))
	copy(data, c.buf)
	c.buf = c.buf[:0]

	seg := Segment{
		Seq:       c.seq,
		Data:      data,
		Format:    c.opts.Format,
		StartedAt: start,
		Duration:  now.Sub(start),
	}
	c.seq++
	return seg, true
}
