package generators

import (
	"context"
	"encoding/json"
	"log"
)

// ModelCatalog is the engine's declared models plus the static sampler and
// scheduler lists. Used only to populate UI selection lists.
type ModelCatalog struct {
	Checkpoints []string `json:"checkpoints"`
	ControlNets []string `json:"controlnets"`
	VAEs        []string `json:"vaes"`
	Samplers    []string `json:"samplers"`
	Schedulers  []string `json:"schedulers"`
}

var defaultSamplers = []string{
	"euler", "euler_ancestral", "heun", "dpm_2", "dpm_2_ancestral", "lms", "dpmpp_2s_a",
	"dpmpp_sde", "dpmpp_sde_gpu", "dpmpp_2m", "dpmpp_2m_sde", "dpmpp_2m_sde_gpu",
	"dpmpp_3m_sde", "dpmpp_3m_sde_gpu", "ddim", "uni_pc", "uni_pc_bh2",
}

var defaultSchedulers = []string{
	"normal", "karras", "exponential", "sgm_uniform", "simple", "ddim_uniform",
}

// objectInfoSource is the slice of the engine client the catalog needs.
type objectInfoSource interface {
	ObjectInfo(ctx context.Context) (map[string]json.RawMessage, error)
}

// FetchCatalog reads the engine's /object_info once and extracts the model
// lists the panel offers for selection. Best effort: if the engine is
// unreachable or a node class is missing, the catalog falls back to the
// static lists and empty model slices — metadata failure must never block
// generation.
func FetchCatalog(ctx context.Context, source objectInfoSource) ModelCatalog {
	catalog := ModelCatalog{
		Samplers:   defaultSamplers,
		Schedulers: defaultSchedulers,
	}

	info, err := source.ObjectInfo(ctx)
	if err != nil {
		log.Printf("[Catalog] Engine object info unavailable, using defaults: %v", err)
		return catalog
	}

	if names := requiredEnum(info, "CheckpointLoaderSimple", "ckpt_name"); names != nil {
		catalog.Checkpoints = names
	} else if names := requiredEnum(info, "ImageOnlyCheckpointLoader", "ckpt_name"); names != nil {
		catalog.Checkpoints = names
	}
	catalog.ControlNets = requiredEnum(info, "ControlNetLoader", "control_net_name")
	catalog.VAEs = requiredEnum(info, "VAELoader", "vae_name")
	return catalog
}

// requiredEnum digs the option list out of a node class declaration:
// input.required.<field> is a [["a","b",...], {...}] pair whose first
// element enumerates allowed values.
func requiredEnum(info map[string]json.RawMessage, class, field string) []string {
	raw, ok := info[class]
	if !ok {
		return nil
	}

	var decl struct {
		Input struct {
			Required map[string]json.RawMessage `json:"required"`
		} `json:"input"`
	}
	if err := json.Unmarshal(raw, &decl); err != nil {
		return nil
	}

	spec, ok := decl.Input.Required[field]
	if !ok {
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(spec, &parts); err != nil || len(parts) == 0 {
		return nil
	}

	var names []string
	if err := json.Unmarshal(parts[0], &names); err != nil {
		return nil
	}
	return names
}
