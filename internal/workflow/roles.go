package workflow

// Role is a semantic label resolved to a concrete node id per kind. The
// indirection exists because every workflow graph numbers its nodes
// differently; the role map is the seam that lets one injector serve all
// of them.
type Role string

const (
	RoleSampler          Role = "sampler"
	RolePositivePrompt   Role = "positive-prompt"
	RoleNegativePrompt   Role = "negative-prompt"
	RoleCheckpoint       Role = "checkpoint"
	RoleDimensions       Role = "dimensions"
	RoleControlNetApply  Role = "controlnet-apply"
	RoleControlNetLoader Role = "controlnet-loader"
	RolePreprocessor     Role = "preprocessor"
)

// Asset slots name the visual inputs a kind consumes. Each slot maps to the
// LoadImage node that receives the uploaded asset's engine-side name.
const (
	SlotSource   = "source"
	SlotSketch   = "sketch"
	SlotOriginal = "original"
	SlotMask     = "mask"
)

// RoleMap binds roles and asset slots to node ids for one workflow kind, and
// names the node whose outputs carry the produced artifacts.
type RoleMap struct {
	Roles      map[Role]string
	AssetSlots map[string]string
	OutputNode string
	Volumetric bool
}

var roleMaps = map[Kind]RoleMap{
	KindImageGeneration: {
		Roles: map[Role]string{
			RoleSampler:        "3",
			RoleCheckpoint:     "10",
			RolePositivePrompt: "6",
			RoleNegativePrompt: "7",
			RoleDimensions:     "5",
		},
		AssetSlots: map[string]string{},
		OutputNode: "9",
	},
	KindImageVariation: {
		Roles: map[Role]string{
			RoleSampler:        "8",
			RoleCheckpoint:     "15",
			RolePositivePrompt: "1",
			RoleNegativePrompt: "16",
			RoleDimensions:     "5",
		},
		AssetSlots: map[string]string{SlotSource: "3"},
		OutputNode: "11",
	},
	KindSketchToImage: {
		Roles: map[Role]string{
			RoleSampler:          "15",
			RoleCheckpoint:       "10",
			RolePositivePrompt:   "5",
			RoleNegativePrompt:   "9",
			RoleDimensions:       "6",
			RoleControlNetApply:  "13",
			RoleControlNetLoader: "11",
			RolePreprocessor:     "19",
		},
		AssetSlots: map[string]string{SlotSource: "8"},
		OutputNode: "16",
	},
	KindInpainting: {
		// No dimension role: the latent size is derived from the uploaded
		// original image by the engine.
		Roles: map[Role]string{
			RoleSampler:        "3",
			RoleCheckpoint:     "29",
			RolePositivePrompt: "6",
			RoleNegativePrompt: "7",
		},
		AssetSlots: map[string]string{SlotOriginal: "20", SlotMask: "25"},
		OutputNode: "9",
	},
	KindThreeDGen: {
		// The conditioning is image-driven; there are no text prompt nodes.
		Roles: map[Role]string{
			RoleSampler:    "3",
			RoleCheckpoint: "54",
			RoleDimensions: "66",
		},
		AssetSlots: map[string]string{SlotSource: "56"},
		OutputNode: "67",
		Volumetric: true,
	},
	KindCanvasSketch: {
		Roles: map[Role]string{
			RoleSampler:          "158",
			RoleCheckpoint:       "177",
			RolePositivePrompt:   "159",
			RoleNegativePrompt:   "160",
			RoleDimensions:       "179",
			RoleControlNetApply:  "167",
			RoleControlNetLoader: "168",
			RolePreprocessor:     "165",
		},
		AssetSlots: map[string]string{SlotSketch: "178"},
		OutputNode: "162",
	},
}

// Roles returns the role map for a kind.
func Roles(kind Kind) (RoleMap, error) {
	rm, ok := roleMaps[kind]
	if !ok {
		return RoleMap{}, ErrUnknownKind
	}
	return rm, nil
}

// RequiredSlots lists the visual input slots a kind needs, in a stable order.
func RequiredSlots(kind Kind) []string {
	switch kind {
	case KindInpainting:
		return []string{SlotOriginal, SlotMask}
	case KindCanvasSketch:
		return []string{SlotSketch}
	case KindImageVariation, KindSketchToImage, KindThreeDGen:
		return []string{SlotSource}
	default:
		return nil
	}
}
