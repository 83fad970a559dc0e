package workflow

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed templates/*.json
var templateFS embed.FS

var templateFiles = map[Kind]string{
	KindImageGeneration: "templates/image_generation.json",
	KindImageVariation:  "templates/image_variation.json",
	KindSketchToImage:   "templates/sketch_to_image.json",
	KindInpainting:      "templates/inpainting.json",
	KindThreeDGen:       "templates/three_d_generation.json",
	KindCanvasSketch:    "templates/canvas_sketch.json",
}

// Template returns a fresh working copy of the job graph for the given kind.
// The embedded JSON is re-parsed on every call, so callers can mutate the
// result freely without affecting other runs.
func Template(kind Kind) (Graph, error) {
	path, ok := templateFiles[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	data, err := templateFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template for %s: %w", kind, err)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse template for %s: %w", kind, err)
	}
	return g, nil
}
