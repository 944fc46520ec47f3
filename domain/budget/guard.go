// Package budget is the pre-flight size guard run before any tool.
package budget

import (
	"encoding/json"
	"fmt"
)

// Decision is the outcome of a budget check
type Decision string

const (
	Allow Decision = "allow"
	Warn  Decision = "warn"
	Block Decision = "block"
)

// Policy holds soft and hard limits on node count and serialized size.
// A zero limit is disabled.
type Policy struct {
	SoftNodeLimit int `yaml:"soft_node_limit" json:"soft_node_limit"`
	HardNodeLimit int `yaml:"hard_node_limit" json:"hard_node_limit"`
	SoftSizeLimit int `yaml:"soft_size_limit" json:"soft_size_limit"`
	HardSizeLimit int `yaml:"hard_size_limit" json:"hard_size_limit"`
}

// DefaultPolicy returns the limits used when none are configured
func DefaultPolicy() Policy {
	return Policy{
		SoftNodeLimit: 500,
		HardNodeLimit: 2000,
		SoftSizeLimit: 256 * 1024,
		HardSizeLimit: 1024 * 1024,
	}
}

// Validate checks that soft limits do not exceed hard limits
func (p Policy) Validate() error {
	if p.SoftNodeLimit < 0 || p.HardNodeLimit < 0 || p.SoftSizeLimit < 0 || p.HardSizeLimit < 0 {
		return fmt.Errorf("budget limits must not be negative")
	}
	if p.HardNodeLimit > 0 && p.SoftNodeLimit > p.HardNodeLimit {
		return fmt.Errorf("soft node limit %d exceeds hard limit %d", p.SoftNodeLimit, p.HardNodeLimit)
	}
	if p.HardSizeLimit > 0 && p.SoftSizeLimit > p.HardSizeLimit {
		return fmt.Errorf("soft size limit %d exceeds hard limit %d", p.SoftSizeLimit, p.HardSizeLimit)
	}
	return nil
}

// Check classifies a request. Hard limits block; soft limits warn. Warnings
// accumulate across both dimensions.
func Check(p Policy, nodeCount, estimatedSize int) (Decision, []string) {
	var hard, soft []string

	if p.HardNodeLimit > 0 && nodeCount > p.HardNodeLimit {
		hard = append(hard, fmt.Sprintf("node count %d exceeds hard limit %d", nodeCount, p.HardNodeLimit))
	} else if p.SoftNodeLimit > 0 && nodeCount > p.SoftNodeLimit {
		soft = append(soft, fmt.Sprintf("node count %d exceeds soft limit %d", nodeCount, p.SoftNodeLimit))
	}

	if p.HardSizeLimit > 0 && estimatedSize > p.HardSizeLimit {
		hard = append(hard, fmt.Sprintf("estimated size %d bytes exceeds hard limit %d", estimatedSize, p.HardSizeLimit))
	} else if p.SoftSizeLimit > 0 && estimatedSize > p.SoftSizeLimit {
		soft = append(soft, fmt.Sprintf("estimated size %d bytes exceeds soft limit %d", estimatedSize, p.SoftSizeLimit))
	}

	switch {
	case len(hard) > 0:
		return Block, append(hard, soft...)
	case len(soft) > 0:
		return Warn, soft
	default:
		return Allow, nil
	}
}

// EstimateSize returns the JSON-encoded size of the given parts. Parts that
// fail to encode count as zero.
func EstimateSize(parts ...interface{}) int {
	total := 0
	for _, p := range parts {
		if p == nil {
			continue
		}
		b, err := json.Marshal(p)
		if err != nil {
			continue
		}
		total += len(b)
	}
	return total
}
