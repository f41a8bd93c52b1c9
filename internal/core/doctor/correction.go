package doctor

import (
	"context"
	"strings"

	"github.com/colonyops/linglenz/internal/core/config"
)

// CorrectionCheck verifies the correction gateway can reach a backend.
type CorrectionCheck struct {
	cfg *config.Config
}

// NewCorrectionCheck creates a correction credentials check.
func NewCorrectionCheck(cfg *config.Config) *CorrectionCheck {
	return &CorrectionCheck{cfg: cfg}
}

func (c *CorrectionCheck) Name() string {
	return "Correction"
}

func (c *CorrectionCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	if c.cfg.Correction.Endpoint != "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "endpoint",
			Status: StatusPass,
			Detail: c.cfg.Correction.Endpoint,
		})
		return result
	}

	if c.cfg.APIKey() == "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "api key",
			Status: StatusFail,
			Detail: "set LINGLENZ_GEMINI_API_KEY or " + c.cfg.Correction.APIKeyEnv,
		})
	} else {
		result.Items = append(result.Items, CheckItem{
			Label:  "api key",
			Status: StatusPass,
			Detail: "found in environment",
		})
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "models",
		Status: StatusPass,
		Detail: strings.Join(c.cfg.Correction.Models, " → "),
	})

	return result
}
