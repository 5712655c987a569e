package asset

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrerysim/orrery/internal/core/shape"
)

func testRaw() Fragment {
	return NewRaw(RawModel{
		Vertices: []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		UV:       []float64{0, 0, 1, 0, 0, 1},
		RGB:      []int{255, 0, 0},
	})
}

func testDae() Fragment {
	return NewDae(DaeModel{
		Dae: []byte("<COLLADA/>"),
		Textures: map[string][]byte{
			"rgb1.png": {0x89, 0x50, 0x4e, 0x47},
			"rgb2.jpg": {0xff, 0xd8, 0xff},
		},
	})
}

func eachVault(t *testing.T, fn func(t *testing.T, store *Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewStore(NewMemoryVault()))
	})
	t.Run("disk", func(t *testing.T) {
		vault, err := NewDiskVault(t.TempDir())
		require.NoError(t, err, "disk vault should initialise")
		fn(t, NewStore(vault))
	})
}

func TestStore_AddTemplate(t *testing.T) {
	eachVault(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		frags := map[string]Fragment{"bar": testRaw()}

		url, err := store.AddTemplate(ctx, "t1", frags)
		require.NoError(t, err, "adding a fresh template should succeed")
		assert.Equal(t, "/templates/t1", url)

		// A template plus one raw fragment is two files.
		count, err := store.FileCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		// The stored model must match the uploaded payload.
		data, err := store.File(ctx, "/templates/t1/bar/model.json")
		require.NoError(t, err, "model file should be retrievable")
		var model RawModel
		require.NoError(t, json.Unmarshal(data, &model))
		assert.Equal(t, *frags["bar"].Raw, model)

		// Duplicate IDs are rejected.
		_, err = store.AddTemplate(ctx, "t1", frags)
		assert.ErrorIs(t, err, ErrExists)

		// A second template coexists with the first.
		url, err = store.AddTemplate(ctx, "t2", map[string]Fragment{"bar": testRaw()})
		require.NoError(t, err)
		assert.Equal(t, "/templates/t2", url)
	})
}

func TestStore_ColladaFiles(t *testing.T) {
	eachVault(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		frag := testDae()

		_, err := store.AddTemplate(ctx, "t1", map[string]Fragment{"bar": frag})
		require.NoError(t, err)

		dae, err := store.File(ctx, "/templates/t1/bar/bar")
		require.NoError(t, err, "collada document should be stored under the fragment name")
		assert.Equal(t, frag.Dae.Dae, dae)

		for name, want := range frag.Dae.Textures {
			tex, err := store.File(ctx, "/templates/t1/bar/"+name)
			require.NoError(t, err, "texture %s should be stored", name)
			assert.Equal(t, want, tex)
		}
	})
}

func TestStore_SpawnInstance(t *testing.T) {
	eachVault(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		frags := map[string]Fragment{"bar": testRaw()}
		_, err := store.AddTemplate(ctx, "t1", frags)
		require.NoError(t, err)

		// Unknown templates cannot spawn.
		_, err = store.SpawnInstance(ctx, "blah", 1)
		assert.ErrorIs(t, err, ErrNotFound)

		url, err := store.SpawnInstance(ctx, "t1", 1)
		require.NoError(t, err, "spawning from an existing template should succeed")
		assert.Equal(t, "/instances/1", url)

		data, err := store.File(ctx, "/instances/1/bar/model.json")
		require.NoError(t, err, "instance should have a copy of the template model")
		var model RawModel
		require.NoError(t, json.Unmarshal(data, &model))
		assert.Equal(t, *frags["bar"].Raw, model)

		// IDs are unique.
		_, err = store.SpawnInstance(ctx, "t1", 1)
		assert.ErrorIs(t, err, ErrExists)

		// Removing the template leaves the instance copy alone.
		require.NoError(t, store.RemoveTemplate(ctx, "t1"))
		_, err = store.File(ctx, "/instances/1/bar/model.json")
		assert.NoError(t, err, "instance files should survive template removal")
	})
}

func TestStore_RemoveLifecycle(t *testing.T) {
	eachVault(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		_, err := store.AddTemplate(ctx, "t1", map[string]Fragment{"bar": testRaw()})
		require.NoError(t, err)

		assert.ErrorIs(t, store.RemoveTemplate(ctx, "blah"), ErrNotFound)

		_, err = store.SpawnInstance(ctx, "t1", 1)
		require.NoError(t, err)
		_, err = store.SpawnInstance(ctx, "t1", 2)
		require.NoError(t, err)

		assert.ErrorIs(t, store.RemoveInstance(ctx, 100), ErrNotFound)

		require.NoError(t, store.RemoveInstance(ctx, 2))
		_, err = store.File(ctx, "/instances/2/bar/model.json")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.File(ctx, "/instances/1/bar/model.json")
		assert.NoError(t, err, "other instances should be unaffected")

		assert.ErrorIs(t, store.RemoveInstance(ctx, 2), ErrNotFound,
			"second removal should fail")

		require.NoError(t, store.Reset(ctx))
		count, err := store.FileCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count, "reset should drop all files")
	})
}

func TestStore_UpdateFragments(t *testing.T) {
	eachVault(t, func(t *testing.T, store *Store) {
		ctx := context.Background()
		orig := testRaw()
		_, err := store.AddTemplate(ctx, "t1", map[string]Fragment{"bar": orig})
		require.NoError(t, err)
		_, err = store.SpawnInstance(ctx, "t1", 1)
		require.NoError(t, err)
		_, err = store.SpawnInstance(ctx, "t1", 2)
		require.NoError(t, err)

		sumsBefore, err := store.Checksums(ctx, 1)
		require.NoError(t, err)

		// Updates to unknown instances fail.
		replacement := NewRaw(RawModel{Vertices: []float64{9, 9, 9}, UV: []float64{}, RGB: []int{}})
		err = store.UpdateFragments(ctx, 100, map[string]Fragment{"bar": replacement})
		assert.ErrorIs(t, err, ErrNotFound)

		// Replace the geometry of instance 1 only.
		require.NoError(t, store.UpdateFragments(ctx, 1, map[string]Fragment{"bar": replacement}))

		data, err := store.File(ctx, "/instances/1/bar/model.json")
		require.NoError(t, err)
		var model RawModel
		require.NoError(t, json.Unmarshal(data, &model))
		assert.Equal(t, *replacement.Raw, model)

		data, err = store.File(ctx, "/instances/2/bar/model.json")
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &model))
		assert.Equal(t, *orig.Raw, model, "instance 2 should keep the original model")

		sumsAfter, err := store.Checksums(ctx, 1)
		require.NoError(t, err)
		assert.NotEqual(t, sumsBefore["bar"], sumsAfter["bar"],
			"replacing geometry should change the checksum")

		// A None fragment removes the files.
		err = store.UpdateFragments(ctx, 1, map[string]Fragment{"bar": {Type: None}})
		require.NoError(t, err)
		_, err = store.File(ctx, "/instances/1/bar/model.json")
		assert.ErrorIs(t, err, ErrNotFound)
		sums, err := store.Checksums(ctx, 1)
		require.NoError(t, err)
		assert.NotContains(t, sums, "bar")
	})
}

func TestFragment_WireFormat(t *testing.T) {
	frag := testDae()
	frag.Scale = 2
	frag.Position = mgl64.Vec3{1, 2, 3}

	data, err := json.Marshal(frag)
	require.NoError(t, err)

	// Byte payloads travel base64-encoded.
	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.JSONEq(t, `"DAE"`, string(wire["fragtype"]))
	var payload struct {
		Dae string `json:"dae"`
	}
	require.NoError(t, json.Unmarshal(wire["fragdata"], &payload))
	assert.Equal(t, "PENPTExBREEvPg==", payload.Dae)

	var back Fragment
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, frag, back)
}

func TestDecodeOverride(t *testing.T) {
	// Metadata-only updates leave the geometry alone.
	o, err := DecodeOverride([]byte(`{"scale": 2, "position": [0, 1, 2]}`))
	require.NoError(t, err)
	require.False(t, o.Empty())

	frag := testRaw()
	geomChanged, err := o.Apply(&frag)
	require.NoError(t, err)
	assert.False(t, geomChanged, "metadata update should not touch geometry")
	assert.Equal(t, 2.0, frag.Scale)
	assert.Equal(t, mgl64.Vec3{0, 1, 2}, frag.Position)
	assert.Equal(t, shape.QuatIdent, frag.Rotation)

	// A new payload flags a geometry change.
	o, err = DecodeOverride([]byte(`{"fragtype": "RAW", "fragdata": {"vert": [1], "uv": [], "rgb": []}}`))
	require.NoError(t, err)
	geomChanged, err = o.Apply(&frag)
	require.NoError(t, err)
	assert.True(t, geomChanged)
	assert.Equal(t, []float64{1}, frag.Raw.Vertices)

	// Unknown keys are rejected.
	_, err = DecodeOverride([]byte(`{"blah": 1}`))
	assert.ErrorIs(t, err, ErrInvalidFragment)

	// None marks removal and cannot be applied as an update.
	o, err = DecodeOverride([]byte(`{"fragtype": "none"}`))
	require.NoError(t, err)
	assert.True(t, o.Remove())
	_, err = o.Apply(&frag)
	assert.Error(t, err)
}
