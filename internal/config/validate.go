package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"recruitflow/internal/errors"
)

// weightTolerance absorbs float noise in hand-written weight vectors such as 0.4/0.3/0.15/0.15.
const weightTolerance = 1e-6

// Validate checks if the configuration is valid. Every failure is a
// configuration error and is fatal at startup.
func (c *Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	if c.AI.Timeout <= 0 {
		return invalid("AI timeout must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return invalid("AI maxRetries cannot be negative")
	}
	opConfigs := c.operationConfigs()
	for _, op := range Operations {
		opCfg := opConfigs[op]
		if opCfg.Timeout != nil && *opCfg.Timeout <= 0 {
			return invalid(fmt.Sprintf("AI %s timeout must be positive", op))
		}
	}

	if c.Server.Port == "" {
		return invalid("server port is required")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return invalid(fmt.Sprintf("invalid default format: %s", c.App.DefaultFormat))
	}

	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return invalid("storage.s3.bucket is required when S3 is enabled")
	}
	if c.Storage.Postgres.Enabled && c.Storage.Postgres.DSN == "" {
		return invalid("storage.postgres.dsn is required when Postgres is enabled")
	}
	if c.Queue.AMQP.Enabled && c.Queue.AMQP.URL == "" {
		return invalid("queue.amqp.url is required when AMQP is enabled")
	}

	return nil
}

// Validate checks the weight vector and the recommendation bands.
func (s ScoringConfig) Validate() error {
	w := s.Weights
	for name, value := range map[string]float64{
		"skills":      w.Skills,
		"experience":  w.Experience,
		"education":   w.Education,
		"culturalFit": w.CulturalFit,
	} {
		if value < 0 || math.IsNaN(value) {
			return errors.NewConfigError(errors.ErrCodeInvalidWeights,
				fmt.Sprintf("scoring weight %s must be a non-negative number, got %v", name, value), nil)
		}
	}

	sum := w.Skills + w.Experience + w.Education + w.CulturalFit
	if math.Abs(sum-1.0) > weightTolerance {
		return errors.NewConfigError(errors.ErrCodeInvalidWeights,
			fmt.Sprintf("scoring weights must sum to 1.0, got %.4f", sum), nil).
			WithContext("weights_sum", sum)
	}

	if len(s.Bands) == 0 {
		return errors.NewConfigError(errors.ErrCodeInvalidBands, "at least one recommendation band is required", nil)
	}
	for i, band := range s.Bands {
		if strings.TrimSpace(band.Label) == "" {
			return errors.NewConfigError(errors.ErrCodeInvalidBands,
				fmt.Sprintf("recommendation band %d has an empty label", i), nil)
		}
		if band.Threshold < 0 || band.Threshold > 100 {
			return errors.NewConfigError(errors.ErrCodeInvalidBands,
				fmt.Sprintf("recommendation band %q threshold must be within [0, 100]", band.Label), nil)
		}
		if i > 0 && band.Threshold >= s.Bands[i-1].Threshold {
			return errors.NewConfigError(errors.ErrCodeInvalidBands,
				"recommendation bands must be ordered by strictly descending threshold", nil)
		}
	}
	// The lowest band must catch every score, otherwise the table is not exhaustive.
	if last := s.Bands[len(s.Bands)-1]; last.Threshold != 0 {
		return errors.NewConfigError(errors.ErrCodeInvalidBands,
			fmt.Sprintf("lowest recommendation band %q must start at 0", last.Label), nil)
	}

	if s.EducationPenalty < 0 || s.EducationPenalty > 100 {
		return invalid("scoring.educationPenalty must be within [0, 100]")
	}
	if s.DefaultCulturalFit < 0 || s.DefaultCulturalFit > 100 {
		return invalid("scoring.defaultCulturalFit must be within [0, 100]")
	}
	if s.RequiredSkillWeight <= 0 || s.PreferredSkillWeight <= 0 {
		return invalid("skill tier weights must be positive")
	}
	return nil
}

// Validate checks shortlist and worker settings.
func (p PipelineConfig) Validate() error {
	if p.MaxCandidates < 0 {
		return invalid("pipeline.maxCandidates cannot be negative")
	}
	if p.MinimumScore < 0 || p.MinimumScore > 100 || math.IsNaN(p.MinimumScore) {
		return invalid(fmt.Sprintf("pipeline.minimumScore must be within [0, 100], got %v", p.MinimumScore))
	}
	if p.Workers < 1 {
		return invalid("pipeline.workers must be at least 1")
	}
	if p.ItemTimeout <= 0 {
		return invalid("pipeline.itemTimeout must be positive")
	}
	if p.MaxFileSize <= 0 {
		return invalid("pipeline.maxFileSize must be positive")
	}
	if len(p.AllowedFormats) == 0 {
		return invalid("pipeline.allowedFormats cannot be empty")
	}
	return nil
}

func invalid(message string) error {
	return errors.NewConfigError(errors.ErrCodeInvalidConfig, message, nil)
}
