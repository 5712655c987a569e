package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/broker"
	"github.com/orrerysim/orrery/internal/core/events/bus"
	"github.com/orrerysim/orrery/internal/core/observability/log"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/internal/core/template"
)

func newTestSession(t *testing.T) (*Session, protocol.Handler) {
	t.Helper()
	b := broker.New(state.NewMemory(), asset.NewStore(asset.NewMemoryVault()), bus.New(), log.NewNop())
	require.NoError(t, b.InstallDefaults(context.Background()))
	return NewSession(b.Handler(), log.NewNop()), b.Handler()
}

func objectCount(t *testing.T, handler protocol.Handler) int {
	t.Helper()
	req, err := protocol.NewRequest(protocol.CmdGetAllObjectIDs, protocol.ObjectIDsRequest{})
	require.NoError(t, err)
	resp := handler(context.Background(), req)
	require.True(t, resp.OK, resp.Msg)
	var res protocol.ObjectIDsResult
	require.NoError(t, resp.Bind(&res))
	return len(res.ObjIDs)
}

func TestShapeConstructors(t *testing.T) {
	s, _ := newTestSession(t)

	compiled, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
b := orrery.box(1, 2, 3)
sp := orrery.sphere(2.5)
pl := orrery.static_plane(0, 0, 1, 0.5)
em := orrery.empty()
types := [b.cstype, sp.cstype, pl.cstype, em.cstype]
names := [orrery.shape_name(b), orrery.shape_name(sp), orrery.shape_name(pl), orrery.shape_name(em)]
radius := sp.csdata.radius
hy := b.csdata.y
`))
	require.NoError(t, err)

	assert.Equal(t, []any{"BOX", "SPHERE", "PLANE", "EMPTY"}, compiled.Get("types").Array())
	assert.Equal(t, []any{"Box", "SPHERE", "STATICPLANE", "Empty"}, compiled.Get("names").Array())
	assert.Equal(t, 2.5, compiled.Get("radius").Float())
	assert.Equal(t, 2.0, compiled.Get("hy").Float())
}

func TestSceneScript(t *testing.T) {
	s, handler := newTestSession(t)

	compiled, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
pong := orrery.ping()

tpl := orrery.template("scripted")
tpl.rbs.cshapes = {hull: orrery.box(1, 1, 1)}
orrery.add_template(tpl)

ids := orrery.spawn("scripted", {templateID: "scripted", rbs: {position: [5, 0, 0]}})
orrery.set_force(ids[0], [1, 0, 0])

states := orrery.object_states()
count := len(states)
x := states["2"].rbs.position[0]

orrery.remove(ids[0])
left := len(orrery.object_states())
`))
	require.NoError(t, err)

	assert.Contains(t, compiled.Get("pong").String(), "pong")
	assert.Equal(t, []any{int64(1), int64(2)}, compiled.Get("ids").Array())
	assert.Equal(t, 2, compiled.Get("count").Int())
	assert.Equal(t, 5.0, compiled.Get("x").Float())
	assert.Equal(t, 1, compiled.Get("left").Int())
	assert.Equal(t, 1, objectCount(t, handler))
}

func TestBoost(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
tpl := orrery.template("ship")
tpl.boosters = {b0: {pos: [0, 0, 0], direction: [0, 0, 1], minval: -10, maxval: 10, force: 0}}
orrery.add_template(tpl)
ids := orrery.spawn("ship")
orrery.boost(ids[0], {b0: 5})
`))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), []byte(`
orrery := import("orrery")
ids := orrery.spawn("ship")
orrery.boost(ids[0], {blah: 1})
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no booster")
}

func TestCommandFailureAbortsScript(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
orrery.spawn("no_such_template")
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not find all templates")
}

// TestWirePayloads pins the exact wire form the module emits per verb.
func TestWirePayloads(t *testing.T) {
	var gotCmd string
	var gotData []byte
	capture := func(result any) protocol.Handler {
		return func(_ context.Context, req *protocol.Request) *protocol.Response {
			gotCmd = req.Cmd
			gotData = append([]byte(nil), req.Data...)
			return protocol.Success(result)
		}
	}

	t.Run("spawn shorthand", func(t *testing.T) {
		s := NewSession(capture(protocol.ObjectIDsResult{ObjIDs: []uint64{7}}), log.NewNop())
		compiled, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
ids := orrery.spawn("`+template.DefaultSphere+`")
`))
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdSpawn, gotCmd)
		assert.JSONEq(t, `{"payload":[{"templateID":"_templateSphere"}]}`, string(gotData))
		assert.Equal(t, []any{int64(7)}, compiled.Get("ids").Array())
	})

	t.Run("boost", func(t *testing.T) {
		s := NewSession(capture(nil), log.NewNop())
		_, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
orrery.boost(3, {b0: 5})
`))
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdControlParts, gotCmd)
		assert.JSONEq(t, `{"objID":3,"cmd_boosters":{"b0":{"force":5}},"cmd_factories":null}`, string(gotData))
	})

	t.Run("set_force defaults the offset", func(t *testing.T) {
		s := NewSession(capture(nil), log.NewNop())
		_, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
orrery.set_force(2, [1, 0, 0])
`))
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdSetForce, gotCmd)
		assert.JSONEq(t, `{"objID":2,"force":[1,0,0],"rel_pos":[0,0,0]}`, string(gotData))
	})

	t.Run("remove", func(t *testing.T) {
		s := NewSession(capture(nil), log.NewNop())
		_, err := s.Run(context.Background(), []byte(`
orrery := import("orrery")
orrery.remove(9)
`))
		require.NoError(t, err)
		assert.Equal(t, protocol.CmdRemove, gotCmd)
		assert.JSONEq(t, `{"objID":9}`, string(gotData))
	})
}

func TestRunner(t *testing.T) {
	t.Run("runs scripts in order and survives failures", func(t *testing.T) {
		_, handler := newTestSession(t)
		dir := t.TempDir()
		writeScript(t, dir, "00_broken.tengo", `nonsense(`)
		writeScript(t, dir, "10_scene.tengo", `
orrery := import("orrery")
orrery.spawn("`+template.DefaultSphere+`")
`)
		writeScript(t, dir, "notes.txt", `not a script`)

		r := NewRunner(Config{Dir: dir, Timeout: 5 * time.Second}, handler, log.NewNop())
		require.NoError(t, r.Run(context.Background()))
		assert.Equal(t, 1, objectCount(t, handler))
	})

	t.Run("missing directory is fine", func(t *testing.T) {
		_, handler := newTestSession(t)
		r := NewRunner(Config{Dir: filepath.Join(t.TempDir(), "absent")}, handler, log.NewNop())
		require.NoError(t, r.Run(context.Background()))
	})

	t.Run("empty dir config disables the runner", func(t *testing.T) {
		_, handler := newTestSession(t)
		r := NewRunner(Config{}, handler, log.NewNop())
		require.NoError(t, r.Run(context.Background()))
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// A non-script file must not surface; the next script write must.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.tengo"), []byte("a := 1"), 0o644))

	select {
	case path := <-w.Events:
		assert.Equal(t, filepath.Join(dir, "scene.tengo"), path)
	case <-time.After(2 * time.Second):
		t.Fatal("no watcher event")
	}
}

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}
