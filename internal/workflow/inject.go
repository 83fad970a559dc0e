package workflow

import (
	"math/rand"
)

// maxSeed bounds randomized seeds; the engine treats seeds as 53-bit safe
// integers, so stay below 10^15 like the UI always has.
const maxSeed = int64(1_000_000_000_000_000)

// Inject populates a template working copy with the run's parameters and
// uploaded asset names. The input graph is never mutated: a clone is
// validated against the role map first and only the clone is written to, so
// a role mismatch leaves no partial state behind.
func Inject(kind Kind, template Graph, rm RoleMap, params GenerationParams, assets map[string]string) (Graph, error) {
	g, err := template.Clone()
	if err != nil {
		return nil, err
	}

	// Fail closed before touching anything: a silently skipped role would
	// submit a graph with stale template defaults.
	for role, nodeID := range rm.Roles {
		if _, ok := g[nodeID]; !ok {
			return nil, &RoleMismatchError{Kind: kind, Role: string(role), NodeID: nodeID, Reason: "node not present in template"}
		}
	}
	for slot, nodeID := range rm.AssetSlots {
		if _, ok := g[nodeID]; !ok {
			return nil, &RoleMismatchError{Kind: kind, Role: slot, NodeID: nodeID, Reason: "node not present in template"}
		}
		if _, ok := assets[slot]; !ok {
			return nil, &RoleMismatchError{Kind: kind, Role: slot, NodeID: nodeID, Reason: "no uploaded asset for slot"}
		}
	}
	if nodeID, ok := rm.Roles[RoleDimensions]; ok {
		if err := checkDimensionClass(kind, nodeID, g[nodeID]); err != nil {
			return nil, err
		}
	}

	// Roles are independent of one another; application order does not
	// matter. The controlnet loader lookup below is an explicit second step
	// of the apply role, not an ordering dependency.
	if nodeID, ok := rm.Roles[RoleSampler]; ok {
		inputs := g[nodeID].Inputs
		inputs["seed"] = resolveSeed(params.Seed)
		inputs["steps"] = params.Steps
		inputs["cfg"] = params.CFG
		inputs["sampler_name"] = params.SamplerName
		inputs["scheduler"] = params.Scheduler
		if _, has := inputs["denoise"]; has {
			inputs["denoise"] = params.Denoise
		}
	}

	if nodeID, ok := rm.Roles[RolePositivePrompt]; ok {
		g[nodeID].Inputs["text"] = params.Prompt
	}
	if nodeID, ok := rm.Roles[RoleNegativePrompt]; ok {
		text := params.NegativePrompt
		if text == "" {
			text = DefaultNegativePrompt
		}
		g[nodeID].Inputs["text"] = text
	}

	if nodeID, ok := rm.Roles[RoleCheckpoint]; ok && params.Checkpoint != "" {
		g[nodeID].Inputs["ckpt_name"] = params.Checkpoint
	}

	if nodeID, ok := rm.Roles[RoleDimensions]; ok {
		applyDimensions(g[nodeID], params)
	}

	if nodeID, ok := rm.Roles[RoleControlNetApply]; ok {
		g[nodeID].Inputs["strength"] = params.ControlNetStrength
		if params.ControlNet != "" {
			if loaderID, ok := rm.Roles[RoleControlNetLoader]; ok {
				g[loaderID].Inputs["control_net_name"] = params.ControlNet
			}
		}
	}

	if nodeID, ok := rm.Roles[RolePreprocessor]; ok {
		g[nodeID].Inputs["resolution"] = params.PreprocessorResolution
	}

	for slot, nodeID := range rm.AssetSlots {
		g[nodeID].Inputs["image"] = assets[slot]
	}

	return g, nil
}

// resolveSeed maps the -1 sentinel to a fresh uniform seed. Re-rolled on
// every call, never cached.
func resolveSeed(seed int64) int64 {
	if seed == -1 {
		return rand.Int63n(maxSeed)
	}
	return seed
}

// Three dimension shapes exist across the templates; the field names depend
// on the target node's class. Anything else fails closed rather than
// guessing a field name the engine would ignore.
func checkDimensionClass(kind Kind, nodeID string, node *Node) error {
	switch node.ClassType {
	case "EmptyLatentImage", "EmptySD3LatentImage", "Image Resize", "EmptyLatentHunyuan3Dv2":
		return nil
	default:
		return &RoleMismatchError{Kind: kind, Role: string(RoleDimensions), NodeID: nodeID, Reason: "unsupported dimension node class " + node.ClassType}
	}
}

func applyDimensions(node *Node, params GenerationParams) {
	switch node.ClassType {
	case "Image Resize":
		node.Inputs["resize_width"] = params.Width
		node.Inputs["resize_height"] = params.Height
	case "EmptyLatentHunyuan3Dv2":
		node.Inputs["resolution"] = params.Width
	default: // EmptyLatentImage, EmptySD3LatentImage
		node.Inputs["width"] = params.Width
		node.Inputs["height"] = params.Height
	}
}
