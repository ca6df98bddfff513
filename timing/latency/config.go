package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds execution latencies for the multi-cycle functional
// units. All values are in cycles and fixed for the duration of a run.
type TimingConfig struct {
	// MultiplyLatency is the latency of integer multiply. Default: 4.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// DivideLatency is the latency of integer divide. Default: 8.
	DivideLatency uint64 `json:"divide_latency"`

	// FPAddLatency is the latency of floating-point add. Default: 3.
	FPAddLatency uint64 `json:"fp_add_latency"`

	// FPMulLatency is the latency of floating-point multiply. Default: 5.
	FPMulLatency uint64 `json:"fp_mul_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		MultiplyLatency: 4,
		DivideLatency:   8,
		FPAddLatency:    3,
		FPMulLatency:    5,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0). It rejects
// bad configurations before a run starts, never at run time.
func (c *TimingConfig) Validate() error {
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatency == 0 {
		return fmt.Errorf("divide_latency must be > 0")
	}
	if c.FPAddLatency == 0 {
		return fmt.Errorf("fp_add_latency must be > 0")
	}
	if c.FPMulLatency == 0 {
		return fmt.Errorf("fp_mul_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
