package template

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/shape"
)

// IDs of the templates installed at startup.
const (
	DefaultEmpty  = "_templateEmpty"
	DefaultSphere = "_templateSphere"
	DefaultBox    = "_templateBox"
	DefaultPlane  = "_templatePlane"
)

// Defaults returns the builtin templates: an empty placeholder, a unit
// sphere, a unit box and a static ground plane. Each carries a placeholder
// model fragment so clients always have something to render.
func Defaults() []Template {
	empty := New(DefaultEmpty, body.Default())
	empty.Body.Shapes = shape.Set{"csempty": shape.NewEmpty()}
	empty.Fragments["NoName"] = asset.DefaultFragment()

	sphere := New(DefaultSphere, body.Default())
	sphere.Body.Shapes = shape.Set{"cssphere": shape.NewSphere(1)}
	sphere.Fragments["NoName"] = asset.DefaultFragment()

	box := New(DefaultBox, body.Default())
	box.Body.Shapes = shape.Set{"csbox": shape.NewBox(1, 1, 1)}
	box.Fragments["NoName"] = asset.DefaultFragment()

	plane := New(DefaultPlane, body.Default())
	plane.Body.Shapes = shape.Set{"csplane": shape.NewStaticPlane(mgl64.Vec3{0, 1, 0}, 0)}
	plane.Body.InverseMass = 0
	plane.Fragments["NoName"] = asset.DefaultFragment()

	return []Template{empty, sphere, box, plane}
}
