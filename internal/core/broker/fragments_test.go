package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/protocol"
)

func fragTypePtr(typ asset.FragType) *asset.FragType { return &typ }

func rawPayload(t *testing.T, vertices ...float64) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(asset.RawModel{Vertices: vertices, UV: []float64{}, RGB: []int{}})
	require.NoError(t, err)
	return data
}

func getFragments(t *testing.T, b *Broker, sel []uint64) protocol.GetFragmentsResult {
	t.Helper()
	var out protocol.GetFragmentsResult
	callOK(t, b, protocol.CmdGetFragments, protocol.ObjectIDsRequest{ObjIDs: sel}, &out)
	return out
}

func objectVersion(t *testing.T, b *Broker, id uint64) uint32 {
	t.Helper()
	var out protocol.GetObjectStatesResult
	callOK(t, b, protocol.CmdGetObjectStates,
		protocol.ObjectIDsRequest{ObjIDs: []uint64{id}}, &out)
	require.NotNil(t, out.Data[id])
	return out.Data[id].Body.Version
}

func TestGetFragments(t *testing.T) {
	b := newTestBroker(t)
	addTemplate(t, b, testTemplate("art", map[string]asset.Fragment{
		"f1": fragRaw(),
		"f2": fragDae(),
	}))
	id := spawnFrom(t, b, "art", 1)[0]

	out := getFragments(t, b, []uint64{id, 10000})
	require.Len(t, out, 2)
	assert.Nil(t, out[10000])

	refs := out[id]
	require.Len(t, refs, 2)
	assert.Equal(t, asset.Raw, refs["f1"].Type)
	assert.Equal(t, asset.Dae, refs["f2"].Type)
	assert.Equal(t, "/instances/1/f1", refs["f1"].URL)
	assert.Equal(t, 1.0, refs["f1"].Scale)

	// The referenced files are downloadable.
	ctx := context.Background()
	_, err := b.assets.File(ctx, refs["f1"].URL+"/model.json")
	assert.NoError(t, err)
	_, err = b.assets.File(ctx, refs["f2"].URL+"/f2")
	assert.NoError(t, err)
	_, err = b.assets.File(ctx, refs["f2"].URL+"/rgb1.png")
	assert.NoError(t, err)
}

func TestSetFragments(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	addTemplate(t, b, testTemplate("art", map[string]asset.Fragment{
		"f1": fragRaw(),
		"f2": fragDae(),
	}))
	id := spawnFrom(t, b, "art", 1)[0]
	scale := 2.0
	pos := mgl64.Vec3{1, 2, 3}

	// Placement updates change the record but never the stored geometry.
	before, err := b.assets.Checksums(ctx, id)
	require.NoError(t, err)
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f1": {Scale: &scale, Position: &pos}},
	}, nil)
	refs := getFragments(t, b, []uint64{id})[id]
	assert.Equal(t, scale, refs["f1"].Scale)
	assert.Equal(t, pos, refs["f1"].Position)
	assert.Equal(t, 1.0, refs["f2"].Scale, "untouched fragments keep their placement")
	assert.Equal(t, uint32(0), objectVersion(t, b, id))
	after, err := b.assets.Checksums(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The same update twice is fine.
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f1": {Scale: &scale, Position: &pos}},
	}, nil)

	// Payload updates rewrite the file and bump the version.
	model := rawPayload(t, 2, 2, 2, 4, 4, 4, 6, 6, 6)
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f1": {Data: model}},
	}, nil)
	assert.Equal(t, uint32(1), objectVersion(t, b, id))
	stored, err := b.assets.File(ctx, "/instances/1/f1/model.json")
	require.NoError(t, err)
	assert.JSONEq(t, string(model), string(stored))
	after, err = b.assets.Checksums(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, before["f1"], after["f1"])
	assert.Equal(t, before["f2"], after["f2"])

	// A type change needs a payload of the new type.
	resp := call(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f2": {Type: fragTypePtr(asset.Raw)}},
	})
	assert.False(t, resp.OK)

	// With a payload the swap replaces the old files wholesale.
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f2": {Type: fragTypePtr(asset.Raw), Data: model}},
	}, nil)
	refs = getFragments(t, b, []uint64{id})[id]
	assert.Equal(t, asset.Raw, refs["f2"].Type)
	_, err = b.assets.File(ctx, "/instances/1/f2/model.json")
	assert.NoError(t, err)
	_, err = b.assets.File(ctx, "/instances/1/f2/f2")
	assert.Error(t, err, "collada payload is gone after the swap")
	assert.Equal(t, uint32(2), objectVersion(t, b, id))

	// Marking a fragment NONE removes it everywhere.
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f1": {Type: fragTypePtr(asset.None)}},
	}, nil)
	refs = getFragments(t, b, []uint64{id})[id]
	require.Len(t, refs, 1)
	assert.NotContains(t, refs, "f1")
	_, err = b.assets.File(ctx, "/instances/1/f1/model.json")
	assert.Error(t, err)
	assert.Equal(t, uint32(3), objectVersion(t, b, id))

	// A brand new fragment needs a full description.
	resp = call(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"extra": {Type: fragTypePtr(asset.Raw)}},
	})
	assert.False(t, resp.OK)
	callOK(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"extra": {Type: fragTypePtr(asset.Raw), Data: model}},
	}, nil)
	refs = getFragments(t, b, []uint64{id})[id]
	assert.Contains(t, refs, "extra")
}

func TestSetFragmentsIndependence(t *testing.T) {
	b := newTestBroker(t)
	addTemplate(t, b, testTemplate("art", map[string]asset.Fragment{
		"f1": fragRaw(),
		"f2": fragDae(),
	}))
	id := spawnFrom(t, b, "art", 1)[0]
	scale := 5.0

	// An unknown object fails the batch, the rest still applies.
	resp := call(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id:    {"f1": {Scale: &scale}},
		10000: {"f1": {Scale: &scale}},
	})
	require.False(t, resp.OK)
	assert.Equal(t, "Could not update all fragments", resp.Msg)
	assert.Equal(t, scale, getFragments(t, b, []uint64{id})[id]["f1"].Scale)

	// Within one object the commands are all or nothing.
	resp = call(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"f2": {Scale: &scale}, "blah": {Scale: &scale}},
	})
	require.False(t, resp.OK)
	assert.Equal(t, 1.0, getFragments(t, b, []uint64{id})[id]["f2"].Scale)

	// Removing a fragment that does not exist fails the same way.
	resp = call(t, b, protocol.CmdSetFragments, protocol.SetFragmentsRequest{
		id: {"blah": {Type: fragTypePtr(asset.None)}},
	})
	assert.False(t, resp.OK)
}
