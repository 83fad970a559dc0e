package generators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubObjectInfo struct {
	info map[string]json.RawMessage
	err  error
}

func (s *stubObjectInfo) ObjectInfo(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.info, s.err
}

func TestFetchCatalogExtractsModelLists(t *testing.T) {
	source := &stubObjectInfo{info: map[string]json.RawMessage{
		"CheckpointLoaderSimple": json.RawMessage(`{
			"input": {"required": {"ckpt_name": [["sd_xl_base.safetensors", "dreamshaper_8.safetensors"], {}]}}
		}`),
		"ControlNetLoader": json.RawMessage(`{
			"input": {"required": {"control_net_name": [["control_scribble.pth"], {}]}}
		}`),
	}}

	catalog := FetchCatalog(context.Background(), source)
	assert.Equal(t, []string{"sd_xl_base.safetensors", "dreamshaper_8.safetensors"}, catalog.Checkpoints)
	assert.Equal(t, []string{"control_scribble.pth"}, catalog.ControlNets)
	assert.Empty(t, catalog.VAEs)
	assert.Contains(t, catalog.Samplers, "euler")
	assert.Contains(t, catalog.Schedulers, "karras")
}

func TestFetchCatalogFallsBackWhenEngineUnavailable(t *testing.T) {
	source := &stubObjectInfo{err: errors.New("connection refused")}

	catalog := FetchCatalog(context.Background(), source)
	assert.Empty(t, catalog.Checkpoints)
	assert.Equal(t, defaultSamplers, catalog.Samplers)
	assert.Equal(t, defaultSchedulers, catalog.Schedulers)
}

func TestFetchCatalogIgnoresMalformedDeclarations(t *testing.T) {
	source := &stubObjectInfo{info: map[string]json.RawMessage{
		"CheckpointLoaderSimple": json.RawMessage(`{"input": {"required": {"ckpt_name": "not-a-pair"}}}`),
	}}

	catalog := FetchCatalog(context.Background(), source)
	assert.Empty(t, catalog.Checkpoints)
}
