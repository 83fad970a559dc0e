package workflow

import "fmt"

// Kind identifies one of the generation workflows the panel can run.
type Kind string

const (
	KindImageGeneration Kind = "image-generation"
	KindImageVariation  Kind = "image-variation"
	KindSketchToImage   Kind = "sketch-to-image"
	KindInpainting      Kind = "inpainting"
	KindThreeDGen       Kind = "three-d-generation"
	KindCanvasSketch    Kind = "canvas-sketch"
)

// Kinds lists every registered workflow kind.
var Kinds = []Kind{
	KindImageGeneration,
	KindImageVariation,
	KindSketchToImage,
	KindInpainting,
	KindThreeDGen,
	KindCanvasSketch,
}

// ParseKind validates a kind string coming from the API layer.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
