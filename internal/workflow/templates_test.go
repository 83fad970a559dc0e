package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateUnknownKind(t *testing.T) {
	_, err := Template(Kind("voxel-painting"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTemplateReturnsIndependentCopies(t *testing.T) {
	a, err := Template(KindImageGeneration)
	require.NoError(t, err)
	b, err := Template(KindImageGeneration)
	require.NoError(t, err)

	a["3"].Inputs["steps"] = 99
	a["6"].Inputs["text"] = "mutated"

	assert.NotEqual(t, 99, b["3"].Inputs["steps"])
	assert.Equal(t, "", b["6"].Inputs["text"])
}

// Every node id a role map points at must exist in that kind's template,
// including the output node. This is the static consistency check that keeps
// role maps and templates from drifting apart.
func TestRoleMapsConsistentWithTemplates(t *testing.T) {
	for _, kind := range Kinds {
		g, err := Template(kind)
		require.NoError(t, err, "template for %s", kind)

		rm, err := Roles(kind)
		require.NoError(t, err, "roles for %s", kind)

		for role, nodeID := range rm.Roles {
			assert.Contains(t, g, nodeID, "%s: role %s", kind, role)
		}
		for slot, nodeID := range rm.AssetSlots {
			assert.Contains(t, g, nodeID, "%s: slot %s", kind, slot)
			if assert.NotNil(t, g[nodeID]) {
				assert.Equal(t, "LoadImage", g[nodeID].ClassType, "%s: slot %s must target a LoadImage node", kind, slot)
			}
		}
		assert.Contains(t, g, rm.OutputNode, "%s: output node", kind)
	}
}

func TestRequiredSlotsPerKind(t *testing.T) {
	assert.Empty(t, RequiredSlots(KindImageGeneration))
	assert.Equal(t, []string{SlotOriginal, SlotMask}, RequiredSlots(KindInpainting))
	assert.Equal(t, []string{SlotSketch}, RequiredSlots(KindCanvasSketch))
	assert.Equal(t, []string{SlotSource}, RequiredSlots(KindImageVariation))
	assert.Equal(t, []string{SlotSource}, RequiredSlots(KindSketchToImage))
	assert.Equal(t, []string{SlotSource}, RequiredSlots(KindThreeDGen))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sketch-to-image")
	require.NoError(t, err)
	assert.Equal(t, KindSketchToImage, k)

	_, err = ParseKind("sketchy")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
