package workflow

import "encoding/json"

// Graph is a job graph keyed by node id, in the wire layout the engine's
// /prompt endpoint expects.
type Graph map[string]*Node

// Node is a single graph node. Inputs values are either literals
// (string/float64/bool) or a two-element [node-id, slot-index] reference
// to another node's output.
type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
	Meta      map[string]interface{} `json:"_meta,omitempty"`
}

// Clone returns a deep copy of the graph. Working copies are always cloned
// before injection so shared templates are never mutated.
func (g Graph) Clone() (Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	var out Graph
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerationParams is the flat set of user-tunable values for one run.
type GenerationParams struct {
	Prompt                 string  `json:"prompt"`
	NegativePrompt         string  `json:"negative_prompt"`
	Seed                   int64   `json:"seed"` // -1 means roll a fresh random seed
	Steps                  int     `json:"steps"`
	CFG                    float64 `json:"cfg"`
	Width                  int     `json:"width"`
	Height                 int     `json:"height"`
	SamplerName            string  `json:"sampler_name"`
	Scheduler              string  `json:"scheduler"`
	Denoise                float64 `json:"denoise"`
	Checkpoint             string  `json:"checkpoint"`
	ControlNet             string  `json:"controlnet"`
	ControlNetStrength     float64 `json:"controlnet_strength"`
	PreprocessorResolution int     `json:"preprocessor_resolution"`
}

// DefaultNegativePrompt is substituted when the caller leaves the negative
// prompt empty.
const DefaultNegativePrompt = "text, watermark, blurry, low quality, bad anatomy"
