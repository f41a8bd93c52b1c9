package doctor

import (
	"context"
	"io"
)

// AudioCheck probes the audio backend. Missing audio input is a warning:
// classes still accept typed sentences.
type AudioCheck struct {
	probe func() (io.Closer, error)
}

// NewAudioCheck creates an audio check. probe initializes the audio backend
// and returns a handle that releases it.
func NewAudioCheck(probe func() (io.Closer, error)) *AudioCheck {
	return &AudioCheck{probe: probe}
}

func (c *AudioCheck) Name() string {
	return "Audio"
}

func (c *AudioCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	closer, err := c.probe()
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "capture backend",
			Status: StatusWarn,
			Detail: err.Error() + " (typed input still works)",
		})
		return result
	}
	_ = closer.Close()

	result.Items = append(result.Items, CheckItem{
		Label:  "capture backend",
		Status: StatusPass,
		Detail: "available",
	})
	return result
}
