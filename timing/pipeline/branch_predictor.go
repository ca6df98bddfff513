package pipeline

import "fmt"

// PredictorConfig configures the branch predictor.
type PredictorConfig struct {
	// TableSize is the number of predictor entries. Must be a power of
	// two.
	TableSize uint64
}

// DefaultPredictorConfig returns the default predictor configuration.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{TableSize: 64}
}

// Validate checks the predictor configuration.
func (c PredictorConfig) Validate() error {
	if c.TableSize == 0 {
		return fmt.Errorf("predictor table size must be positive")
	}
	if c.TableSize&(c.TableSize-1) != 0 {
		return fmt.Errorf(
			"predictor table size must be a power of two, got %d",
			c.TableSize)
	}
	return nil
}

// Prediction is the predictor's answer for one fetch address.
type Prediction struct {
	Taken  bool
	Target uint64
}

// predictorEntry is one slot of the prediction table. Entries are tagged
// with the full instruction address; a tag mismatch behaves like an
// untrained address.
type predictorEntry struct {
	valid   bool
	pc      uint64
	counter uint8 // 2-bit saturating: 0-1 not taken, 2-3 taken
	target  uint64
}

// BranchPredictorStats tracks branch prediction accuracy.
type BranchPredictorStats struct {
	Predictions    uint64
	Correct        uint64
	Mispredictions uint64
}

// Accuracy returns prediction accuracy as a fraction between 0 and 1.
func (s *BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions)
}

// BranchPredictor is a 2-bit saturating-counter predictor with a
// per-address target slot. Addresses it has never resolved predict not
// taken; the first resolution installs an entry at weak not-taken before
// the counter is stepped.
type BranchPredictor struct {
	entries []predictorEntry
	mask    uint64
	stats   BranchPredictorStats
}

// NewBranchPredictor creates a branch predictor, rejecting invalid
// configurations.
func NewBranchPredictor(config PredictorConfig) (*BranchPredictor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BranchPredictor{
		entries: make([]predictorEntry, config.TableSize),
		mask:    config.TableSize - 1,
	}, nil
}

// Predict returns the direction and target prediction for pc. The target
// is only meaningful when Taken is true.
func (p *BranchPredictor) Predict(pc uint64) Prediction {
	entry := &p.entries[pc&p.mask]
	if !entry.valid || entry.pc != pc {
		return Prediction{}
	}
	return Prediction{
		Taken:  entry.counter >= 2,
		Target: entry.target,
	}
}

// Update trains the predictor with the resolved outcome of the branch at
// pc. target is the resolved target address, recorded even for not-taken
// outcomes so a later taken prediction can redirect the fetch.
func (p *BranchPredictor) Update(pc uint64, taken bool, target uint64) {
	entry := &p.entries[pc&p.mask]
	if !entry.valid || entry.pc != pc {
		*entry = predictorEntry{
			valid:   true,
			pc:      pc,
			counter: 1,
		}
	}

	predicted := entry.counter >= 2
	p.stats.Predictions++
	if predicted == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	if taken {
		if entry.counter < 3 {
			entry.counter++
		}
	} else {
		if entry.counter > 0 {
			entry.counter--
		}
	}
	entry.target = target
}

// Stats returns the accumulated prediction statistics.
func (p *BranchPredictor) Stats() BranchPredictorStats {
	return p.stats
}

// Reset clears all predictor state and statistics.
func (p *BranchPredictor) Reset() {
	for i := range p.entries {
		p.entries[i] = predictorEntry{}
	}
	p.stats = BranchPredictorStats{}
}
