package config

import "fmt"

// Model operations. Each one can override the global AI settings.
const (
	OperationExtract   = "extract"
	OperationAssess    = "assess"
	OperationInterview = "interview"
	OperationEmail     = "email"
)

// Operations lists every model operation in pipeline order.
var Operations = []string{OperationExtract, OperationAssess, OperationInterview, OperationEmail}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.MaxTokens == nil {
		maxTokens := c.AI.MaxTokens
		opCfg.MaxTokens = &maxTokens
	}
	if opCfg.UseSystemPrompts == nil {
		useSystem := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &useSystem
	}
	if opCfg.CircuitBreaker == nil {
		cb := c.AI.CircuitBreaker
		opCfg.CircuitBreaker = &cb
	}
}

// GetOperationConfig returns the AI configuration of one operation with every
// unset field filled from the global configuration.
func (c *Config) GetOperationConfig(operation string) (OperationAIConfig, error) {
	var opCfg OperationAIConfig
	switch operation {
	case OperationExtract:
		opCfg = c.AI.Extract
	case OperationAssess:
		opCfg = c.AI.Assess
	case OperationInterview:
		opCfg = c.AI.Interview
	case OperationEmail:
		opCfg = c.AI.Email
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", operation)
	}

	c.applyOperationDefaults(&opCfg)
	return opCfg, nil
}

// operationConfigs returns pointers to every operation block, keyed by name.
func (c *Config) operationConfigs() map[string]*OperationAIConfig {
	return map[string]*OperationAIConfig{
		OperationExtract:   &c.AI.Extract,
		OperationAssess:    &c.AI.Assess,
		OperationInterview: &c.AI.Interview,
		OperationEmail:     &c.AI.Email,
	}
}
