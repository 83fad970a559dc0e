package workflow

import (
	"github.com/google/uuid"
)

// ImageRef is one image entry in a completed job's node output.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput is the result payload attached to a single node id in the
// engine's history response. Image-producing nodes carry an image list;
// mesh-producing nodes carry a bare filename.
type NodeOutput struct {
	Images   []ImageRef `json:"images,omitempty"`
	Filename string     `json:"filename,omitempty"`
}

// Artifact is one produced output exposed to the user.
type Artifact struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Kind         Kind   `json:"kind"`
	Prompt       string `json:"prompt"`
	IsVolumetric bool   `json:"is_volumetric"`
	Filename     string `json:"filename,omitempty"`
}

// ViewURLFunc builds a retrieval URL for an engine-side file. Injected so
// extraction stays free of transport concerns.
type ViewURLFunc func(filename, subfolder, fileType string) string

// Extract locates the kind's output node in a completed job's outputs and
// normalizes whatever it finds into artifacts. An absent node or an
// unrecognized shape yields zero artifacts, not an error: the job itself
// reported success, and the caller surfaces "completed but nothing
// produced" as an informational status.
func Extract(kind Kind, rm RoleMap, outputs map[string]NodeOutput, prompt string, viewURL ViewURLFunc) []Artifact {
	out, ok := outputs[rm.OutputNode]
	if !ok {
		return nil
	}

	if rm.Volumetric && out.Filename != "" {
		return []Artifact{{
			ID:           uuid.NewString(),
			URL:          viewURL(out.Filename, "output", "output"),
			Kind:         kind,
			Prompt:       prompt,
			IsVolumetric: true,
			Filename:     out.Filename,
		}}
	}

	artifacts := make([]Artifact, 0, len(out.Images))
	for _, img := range out.Images {
		artifacts = append(artifacts, Artifact{
			ID:       uuid.NewString(),
			URL:      viewURL(img.Filename, img.Subfolder, img.Type),
			Kind:     kind,
			Prompt:   prompt,
			Filename: img.Filename,
		})
	}
	return artifacts
}
