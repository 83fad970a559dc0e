package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViewURL(filename, subfolder, fileType string) string {
	return fmt.Sprintf("http://engine/view?filename=%s&type=%s&subfolder=%s", filename, fileType, subfolder)
}

func TestExtractImageList(t *testing.T) {
	rm, _ := Roles(KindImageGeneration)
	outputs := map[string]NodeOutput{
		"9": {Images: []ImageRef{
			{Filename: "ComfyUI_00001_.png", Subfolder: "", Type: "output"},
			{Filename: "ComfyUI_00002_.png", Subfolder: "batch", Type: "output"},
		}},
	}

	artifacts := Extract(KindImageGeneration, rm, outputs, "a red fox", testViewURL)
	require.Len(t, artifacts, 2)

	assert.Contains(t, artifacts[0].URL, "ComfyUI_00001_.png")
	assert.Contains(t, artifacts[1].URL, "ComfyUI_00002_.png")
	assert.Contains(t, artifacts[1].URL, "subfolder=batch")
	for _, a := range artifacts {
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.IsVolumetric)
		assert.Equal(t, KindImageGeneration, a.Kind)
		assert.Equal(t, "a red fox", a.Prompt)
	}
	assert.NotEqual(t, artifacts[0].ID, artifacts[1].ID)
}

func TestExtractVolumetric(t *testing.T) {
	rm, _ := Roles(KindThreeDGen)
	outputs := map[string]NodeOutput{
		"67": {Filename: "mesh/ComfyUI_00001_.glb"},
	}

	artifacts := Extract(KindThreeDGen, rm, outputs, "", testViewURL)
	require.Len(t, artifacts, 1)
	assert.True(t, artifacts[0].IsVolumetric)
	assert.Equal(t, "mesh/ComfyUI_00001_.glb", artifacts[0].Filename)
	assert.Contains(t, artifacts[0].URL, "mesh/ComfyUI_00001_.glb")
}

// A completed job whose output node carries neither shape yields zero
// artifacts; the caller reports that as a notice, not an error.
func TestExtractNoRecognizedShape(t *testing.T) {
	rm, _ := Roles(KindImageGeneration)

	assert.Empty(t, Extract(KindImageGeneration, rm, map[string]NodeOutput{}, "", testViewURL))
	assert.Empty(t, Extract(KindImageGeneration, rm, map[string]NodeOutput{"9": {}}, "", testViewURL))
}
