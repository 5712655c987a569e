// Package template defines the blueprints objects spawn from. A template
// couples a rigid body description with model fragments and the active
// parts (boosters, factories) its instances carry.
package template

import (
	"fmt"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/body"
	"github.com/orrerysim/orrery/internal/core/parts"
)

// Template is one spawnable blueprint.
type Template struct {
	ID        string                    `json:"aid"`
	Body      body.State                `json:"rbs"`
	Fragments map[string]asset.Fragment `json:"fragments"`
	Boosters  map[string]parts.Booster  `json:"boosters"`
	Factories map[string]parts.Factory  `json:"factories"`
}

// New returns a template around the given body with no fragments or parts.
func New(id string, state body.State) Template {
	return Template{
		ID:        id,
		Body:      state,
		Fragments: map[string]asset.Fragment{},
		Boosters:  map[string]parts.Booster{},
		Factories: map[string]parts.Factory{},
	}
}

// Normalize validates the template and brings its parts into canonical
// form: directions become unit vectors and force ranges are checked. It
// must run once before a template is stored.
func (t *Template) Normalize() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty template id", ErrInvalidTemplate)
	}
	if err := t.Body.Validate(); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	if err := asset.ValidateSet(t.Fragments); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	if err := parts.NormalizeBoosters(t.Boosters); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	if err := parts.NormalizeFactories(t.Factories); err != nil {
		return fmt.Errorf("template %q: %w", t.ID, err)
	}
	return nil
}

// Clone deep-copies the template.
func (t Template) Clone() Template {
	out := t
	out.Body = t.Body.Clone()
	out.Fragments = asset.CloneSet(t.Fragments)
	if t.Boosters != nil {
		out.Boosters = make(map[string]parts.Booster, len(t.Boosters))
		for id, b := range t.Boosters {
			out.Boosters[id] = b
		}
	}
	if t.Factories != nil {
		out.Factories = make(map[string]parts.Factory, len(t.Factories))
		for id, f := range t.Factories {
			out.Factories[id] = f
		}
	}
	return out
}

// Meta strips fragment payloads for storage in object records.
func (t Template) Meta() Template {
	out := t.Clone()
	out.Fragments = asset.MetaSet(out.Fragments)
	return out
}
