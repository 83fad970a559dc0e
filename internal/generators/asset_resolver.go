package generators

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"comfy-studio/server/internal/workflow"
)

// VisualInput is one piece of user-supplied imagery before upload: a data
// URL captured from a file picker or a drawing canvas.
type VisualInput struct {
	DataURL       string `json:"data_url"`
	SuggestedName string `json:"suggested_name,omitempty"`
}

// imageUploader is the slice of the engine client the resolver needs.
type imageUploader interface {
	UploadImage(ctx context.Context, data []byte, filename string) (string, error)
}

// AssetResolver turns the visual inputs of a run into engine-side asset
// names. Each upload is independent and never retried; any failure aborts
// the whole run before a graph is submitted.
type AssetResolver struct {
	uploader imageUploader
}

func NewAssetResolver(uploader imageUploader) *AssetResolver {
	return &AssetResolver{uploader: uploader}
}

// Resolve validates that the kind's required slots are all present, then
// uploads each input and returns slot -> engine asset name. Kinds without
// visual input return an empty mapping without any network call.
func (r *AssetResolver) Resolve(ctx context.Context, kind workflow.Kind, inputs map[string]VisualInput) (map[string]string, error) {
	required := workflow.RequiredSlots(kind)
	for _, slot := range required {
		if in, ok := inputs[slot]; !ok || in.DataURL == "" {
			return nil, missingSlotError(kind)
		}
	}

	resolved := make(map[string]string, len(required))
	for _, slot := range required {
		data, err := decodeDataURL(inputs[slot].DataURL)
		if err != nil {
			return nil, &AssetUploadError{Slot: slot, Cause: err}
		}

		name := inputs[slot].SuggestedName
		if name == "" {
			name = fmt.Sprintf("%s_%s_%d.png", kind, slot, time.Now().UnixNano())
		}

		uploaded, err := r.uploader.UploadImage(ctx, data, name)
		if err != nil {
			return nil, &AssetUploadError{Slot: slot, Cause: err}
		}
		log.Printf("[AssetResolver] Uploaded %s asset for %s as %q", slot, kind, uploaded)
		resolved[slot] = uploaded
	}
	return resolved, nil
}

func missingSlotError(kind workflow.Kind) error {
	switch kind {
	case workflow.KindInpainting:
		return workflow.ErrMissingInpaintAssets
	case workflow.KindCanvasSketch:
		return workflow.ErrMissingSketchAsset
	default:
		return workflow.ErrMissingSourceImage
	}
}

// decodeDataURL extracts the binary payload of a base64 data URL of the
// form "data:image/png;base64,....".
func decodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, ",")
	if idx < 0 || !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("malformed data URL")
	}
	meta := dataURL[:idx]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URL encoding: %s", meta)
	}

	data, err := base64.StdEncoding.DecodeString(dataURL[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return data, nil
}
