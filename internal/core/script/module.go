package script

import (
	"context"
	"encoding/json"

	"github.com/d5/tengo/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/parts"
	"github.com/orrerysim/orrery/internal/core/protocol"
	"github.com/orrerysim/orrery/internal/core/shape"
	"github.com/orrerysim/orrery/internal/core/template"
	"github.com/orrerysim/orrery/pkg/encoding"
)

// moduleAttrs builds the "orrery" module. Values cross the script boundary
// in their JSON wire form, so a shape or template looks the same in a
// script as it does on the network.
func (s *Session) moduleAttrs(ctx context.Context) map[string]tengo.Object {
	return map[string]tengo.Object{
		"box": &tengo.UserFunction{Name: "box", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			x, err := argFloat(args, 0, "hx")
			if err != nil {
				return nil, err
			}
			y, err := argFloat(args, 1, "hy")
			if err != nil {
				return nil, err
			}
			z, err := argFloat(args, 2, "hz")
			if err != nil {
				return nil, err
			}
			return wireObject(shape.NewBox(x, y, z))
		}},

		"sphere": &tengo.UserFunction{Name: "sphere", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			r, err := argFloat(args, 0, "radius")
			if err != nil {
				return nil, err
			}
			return wireObject(shape.NewSphere(r))
		}},

		"static_plane": &tengo.UserFunction{Name: "static_plane", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 4 {
				return nil, tengo.ErrWrongNumArguments
			}
			nx, err := argFloat(args, 0, "nx")
			if err != nil {
				return nil, err
			}
			ny, err := argFloat(args, 1, "ny")
			if err != nil {
				return nil, err
			}
			nz, err := argFloat(args, 2, "nz")
			if err != nil {
				return nil, err
			}
			ofs, err := argFloat(args, 3, "ofs")
			if err != nil {
				return nil, err
			}
			return wireObject(shape.NewStaticPlane(mgl64.Vec3{nx, ny, nz}, ofs))
		}},

		"empty": &tengo.UserFunction{Name: "empty", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			return wireObject(shape.NewEmpty())
		}},

		// shape_name compiles a descriptor against the in-process backend
		// and reports the backend's name string for it.
		"shape_name": &tengo.UserFunction{Name: "shape_name", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			var m shape.Meta
			if err := bindObject(args[0], &m); err != nil {
				return nil, err
			}
			bound, err := engine.NewKinematic().Compile(m)
			if err != nil {
				return nil, err
			}
			return &tengo.String{Value: bound.Name()}, nil
		}},

		// template returns a fresh template around the default body.
		// Scripts adjust its fields before handing it to add_template.
		"template": &tengo.UserFunction{Name: "template", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, ok := args[0].(*tengo.String)
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "id", Expected: "string", Found: args[0].TypeName()}
			}
			return wireObject(template.New(id.Value, body.Default()))
		}},

		"add_template": &tengo.UserFunction{Name: "add_template", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) == 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			templates := make([]any, len(args))
			for i, a := range args {
				templates[i] = tengo.ToInterface(a)
			}
			if err := s.call(ctx, protocol.CmdAddTemplates, map[string]any{"data": templates}, nil); err != nil {
				return nil, err
			}
			return tengo.UndefinedValue, nil
		}},

		// spawn accepts order maps or bare template IDs and returns the new
		// object IDs.
		"spawn": &tengo.UserFunction{Name: "spawn", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) == 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			orders := make([]any, len(args))
			for i, a := range args {
				if id, ok := a.(*tengo.String); ok {
					orders[i] = map[string]any{"templateID": id.Value}
					continue
				}
				orders[i] = tengo.ToInterface(a)
			}
			var res protocol.ObjectIDsResult
			if err := s.call(ctx, protocol.CmdSpawn, map[string]any{"payload": orders}, &res); err != nil {
				return nil, err
			}
			ids := make([]tengo.Object, len(res.ObjIDs))
			for i, id := range res.ObjIDs {
				ids[i] = &tengo.Int{Value: int64(id)}
			}
			return &tengo.Array{Value: ids}, nil
		}},

		"remove": &tengo.UserFunction{Name: "remove", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 1 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, err := argID(args, 0, "objID")
			if err != nil {
				return nil, err
			}
			if err := s.call(ctx, protocol.CmdRemove, protocol.RemoveRequest{ObjID: id}, nil); err != nil {
				return nil, err
			}
			return tengo.UndefinedValue, nil
		}},

		// object_states fetches the per-frame state of the named objects,
		// or of every live object when called without arguments.
		"object_states": &tengo.UserFunction{Name: "object_states", Value: func(args ...tengo.Object) (tengo.Object, error) {
			var ids []uint64
			for i := range args {
				id, err := argID(args, i, "objID")
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}
			var res protocol.GetObjectStatesResult
			if err := s.call(ctx, protocol.CmdGetObjectStates, protocol.ObjectIDsRequest{ObjIDs: ids}, &res); err != nil {
				return nil, err
			}
			return wireObject(res.Data)
		}},

		"set_force": &tengo.UserFunction{Name: "set_force", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 && len(args) != 3 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, err := argID(args, 0, "objID")
			if err != nil {
				return nil, err
			}
			force, err := argVec3(args, 1, "force")
			if err != nil {
				return nil, err
			}
			var rel mgl64.Vec3
			if len(args) == 3 {
				if rel, err = argVec3(args, 2, "rel_pos"); err != nil {
					return nil, err
				}
			}
			req := protocol.SetForceRequest{ObjID: id, Force: force, RelPos: rel}
			if err := s.call(ctx, protocol.CmdSetForce, req, nil); err != nil {
				return nil, err
			}
			return tengo.UndefinedValue, nil
		}},

		// boost sets booster forces: boost(id, {name: force, ...}).
		"boost": &tengo.UserFunction{Name: "boost", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 2 {
				return nil, tengo.ErrWrongNumArguments
			}
			id, err := argID(args, 0, "objID")
			if err != nil {
				return nil, err
			}
			m, ok := args[1].(*tengo.Map)
			if !ok {
				return nil, tengo.ErrInvalidArgumentType{Name: "boosters", Expected: "map", Found: args[1].TypeName()}
			}
			boosters := make(map[string]parts.BoosterCmd, len(m.Value))
			for name, v := range m.Value {
				f, isNum := tengo.ToFloat64(v)
				if !isNum {
					return nil, tengo.ErrInvalidArgumentType{Name: name, Expected: "float", Found: v.TypeName()}
				}
				boosters[name] = parts.BoosterCmd{Force: f}
			}
			req := protocol.ControlPartsRequest{ObjID: id, Boosters: boosters}
			if err := s.call(ctx, protocol.CmdControlParts, req, nil); err != nil {
				return nil, err
			}
			return tengo.UndefinedValue, nil
		}},

		"ping": &tengo.UserFunction{Name: "ping", Value: func(args ...tengo.Object) (tengo.Object, error) {
			if len(args) != 0 {
				return nil, tengo.ErrWrongNumArguments
			}
			var res protocol.PingResult
			if err := s.call(ctx, protocol.CmdPing, struct{}{}, &res); err != nil {
				return nil, err
			}
			return &tengo.String{Value: res.Response}, nil
		}},
	}
}

// wireObject renders v through its JSON form into a script value, so the
// script sees exactly the wire vocabulary.
func wireObject(v any) (tengo.Object, error) {
	data, err := encoding.ToJSON(v)
	if err != nil {
		return nil, err
	}
	plain, err := encoding.FromJSON[any](data)
	if err != nil {
		return nil, err
	}
	return tengo.FromInterface(plain)
}

// bindObject converts a script value through its JSON form into dst.
func bindObject(obj tengo.Object, dst any) error {
	data, err := encoding.ToJSON(tengo.ToInterface(obj))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func argFloat(args []tengo.Object, i int, name string) (float64, error) {
	v, ok := tengo.ToFloat64(args[i])
	if !ok {
		return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "float", Found: args[i].TypeName()}
	}
	return v, nil
}

func argID(args []tengo.Object, i int, name string) (uint64, error) {
	v, ok := tengo.ToInt64(args[i])
	if !ok || v < 0 {
		return 0, tengo.ErrInvalidArgumentType{Name: name, Expected: "object id", Found: args[i].TypeName()}
	}
	return uint64(v), nil
}

func argVec3(args []tengo.Object, i int, name string) (mgl64.Vec3, error) {
	var v mgl64.Vec3
	if err := bindObject(args[i], &v); err != nil {
		return v, tengo.ErrInvalidArgumentType{Name: name, Expected: "array of 3 floats", Found: args[i].TypeName()}
	}
	return v, nil
}
