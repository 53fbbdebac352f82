package queue

import (
	"encoding/json"
	"strings"
)

// ReelParams carries the client-supplied generation parameters persisted on
// the job row. The intake stage normalizes them once, filling defaults from
// configuration, so later stages can rely on every field being populated.
type ReelParams struct {
	// TargetDuration is the desired narration length in seconds.
	TargetDuration float64 `json:"target_duration,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	Style          string  `json:"style,omitempty"`
	Orientation    string  `json:"orientation,omitempty"`
}

// ParamsFromJSON builds parameters from stored JSON. Malformed input yields
// the zero value so callers fall back to configured defaults.
func ParamsFromJSON(data string) ReelParams {
	var params ReelParams
	_ = json.Unmarshal([]byte(data), &params)
	return params
}

// Encode serializes the parameters for storage on the job row.
func (p ReelParams) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// WithDefaults returns a copy with empty fields replaced by the provided
// defaults. Orientation always normalizes to portrait unless explicitly set
// to landscape.
func (p ReelParams) WithDefaults(targetDuration float64, voice string) ReelParams {
	if p.TargetDuration <= 0 {
		p.TargetDuration = targetDuration
	}
	if strings.TrimSpace(p.Voice) == "" {
		p.Voice = voice
	}
	switch strings.ToLower(strings.TrimSpace(p.Orientation)) {
	case "landscape":
		p.Orientation = "landscape"
	default:
		p.Orientation = "portrait"
	}
	return p
}
