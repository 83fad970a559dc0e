package generators

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comfy-studio/server/internal/workflow"
)

type recordingUploader struct {
	calls []string
	names map[string]string
	err   error
}

func (u *recordingUploader) UploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	u.calls = append(u.calls, filename)
	if u.err != nil {
		return "", u.err
	}
	if name, ok := u.names[filename]; ok {
		return name, nil
	}
	return filename, nil
}

func pngDataURL(t *testing.T, payload string) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestResolveNoVisualInputKinds(t *testing.T) {
	uploader := &recordingUploader{}
	resolver := NewAssetResolver(uploader)

	for _, kind := range []workflow.Kind{workflow.KindImageGeneration} {
		resolved, err := resolver.Resolve(context.Background(), kind, nil)
		require.NoError(t, err)
		assert.Empty(t, resolved)
	}
	assert.Empty(t, uploader.calls, "no uploads for kinds without visual input")
}

func TestResolveInpaintingMissingMaskFailsBeforeUpload(t *testing.T) {
	uploader := &recordingUploader{}
	resolver := NewAssetResolver(uploader)

	inputs := map[string]VisualInput{
		workflow.SlotOriginal: {DataURL: pngDataURL(t, "original")},
	}
	_, err := resolver.Resolve(context.Background(), workflow.KindInpainting, inputs)
	assert.ErrorIs(t, err, workflow.ErrMissingInpaintAssets)
	assert.Empty(t, uploader.calls, "validation must precede any network call")
}

func TestResolveMissingSlotErrorsPerKind(t *testing.T) {
	resolver := NewAssetResolver(&recordingUploader{})

	cases := []struct {
		kind workflow.Kind
		want error
	}{
		{workflow.KindImageVariation, workflow.ErrMissingSourceImage},
		{workflow.KindSketchToImage, workflow.ErrMissingSourceImage},
		{workflow.KindThreeDGen, workflow.ErrMissingSourceImage},
		{workflow.KindInpainting, workflow.ErrMissingInpaintAssets},
		{workflow.KindCanvasSketch, workflow.ErrMissingSketchAsset},
	}
	for _, tc := range cases {
		_, err := resolver.Resolve(context.Background(), tc.kind, nil)
		assert.ErrorIs(t, err, tc.want, string(tc.kind))
	}
}

func TestResolveUploadsEverySlot(t *testing.T) {
	uploader := &recordingUploader{names: map[string]string{
		"base.png": "base (1).png",
		"mask.png": "mask.png",
	}}
	resolver := NewAssetResolver(uploader)

	inputs := map[string]VisualInput{
		workflow.SlotOriginal: {DataURL: pngDataURL(t, "original"), SuggestedName: "base.png"},
		workflow.SlotMask:     {DataURL: pngDataURL(t, "mask"), SuggestedName: "mask.png"},
	}
	resolved, err := resolver.Resolve(context.Background(), workflow.KindInpainting, inputs)
	require.NoError(t, err)
	assert.Len(t, uploader.calls, 2)
	// The engine may rename on collision; the mapping must carry its answer.
	assert.Equal(t, "base (1).png", resolved[workflow.SlotOriginal])
	assert.Equal(t, "mask.png", resolved[workflow.SlotMask])
}

func TestResolveMalformedDataURL(t *testing.T) {
	uploader := &recordingUploader{}
	resolver := NewAssetResolver(uploader)

	inputs := map[string]VisualInput{
		workflow.SlotSource: {DataURL: "not-a-data-url"},
	}
	_, err := resolver.Resolve(context.Background(), workflow.KindImageVariation, inputs)
	var uploadErr *AssetUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, workflow.SlotSource, uploadErr.Slot)
	assert.Empty(t, uploader.calls)
}

func TestResolveUploadFailureWrapsCause(t *testing.T) {
	cause := errors.New("engine unreachable")
	resolver := NewAssetResolver(&recordingUploader{err: cause})

	inputs := map[string]VisualInput{
		workflow.SlotSketch: {DataURL: pngDataURL(t, "sketch")},
	}
	_, err := resolver.Resolve(context.Background(), workflow.KindCanvasSketch, inputs)
	var uploadErr *AssetUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.ErrorIs(t, err, cause)
}
