package logging

import "strings"

// ProgressSampler throttles repetitive progress updates. An update passes
// when the reported sub-step changes or when the percentage crosses into a
// new bucket; everything in between is dropped.
type ProgressSampler struct {
	step   float64
	stage  string
	bucket int
}

// NewProgressSampler returns a sampler that emits once per step percent
// (default 5). A nil sampler passes every update through.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, bucket: -1}
}

// ShouldLog reports whether this update is worth a log line. A negative
// percent means unknown and never advances the bucket. The message is part
// of the signature for call-site symmetry but carries volatile text
// (segment counters, ETA) and is ignored.
func (s *ProgressSampler) ShouldLog(percent float64, stage, message string) bool {
	if s == nil {
		return true
	}
	emit := false
	if trimmed := strings.TrimSpace(stage); trimmed != "" && trimmed != s.stage {
		s.stage = trimmed
		s.bucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		if b := int(percent / s.step); b > s.bucket {
			s.bucket = b
			emit = true
		}
	}
	return emit
}

// Reset clears history when a new job claims the stage.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage = ""
	s.bucket = -1
}
