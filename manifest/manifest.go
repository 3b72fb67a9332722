package manifest

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/hupe1980/gridsweep/core"
)

// Manifest is the decoded form of one sweep definition file.
type Manifest struct {
	Sweeps []*Sweep `hcl:"sweep,block"`
	Body   hcl.Body `hcl:",remain"`
}

// Sweep is a `sweep` block: one parameter grid plus the metadata shared by
// all of its entries.
type Sweep struct {
	Name  string      `hcl:"name,label"`
	Phase string      `hcl:"phase,optional"`
	Info  string      `hcl:"info,optional"`
	Seeds []string    `hcl:"seeds,optional"`
	Const *ConstBlock `hcl:"const,block"`
	Axes  []*Axis     `hcl:"axis,block"`
}

// ConstBlock holds free-form attributes copied onto every entry.
type ConstBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Axis is one varying dimension of the grid: either an explicit `values`
// list or a `range` block, never both.
type Axis struct {
	Name   string      `hcl:"name,label"`
	Values cty.Value   `hcl:"values,optional"`
	Range  *RangeBlock `hcl:"range,block"`
}

// RangeBlock generates Count evenly spaced values from From to To inclusive.
type RangeBlock struct {
	From  float64 `hcl:"from"`
	To    float64 `hcl:"to"`
	Count int     `hcl:"count"`
}

// Load parses and decodes a manifest file.
func Load(path string) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes manifest source. The filename appears in diagnostics only.
func Parse(src []byte, filename string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing manifest %s: %s", filename, diags.Error())
	}

	var m Manifest
	if diags := gohcl.DecodeBody(file.Body, nil, &m); diags.HasErrors() {
		return nil, fmt.Errorf("decoding manifest %s: %s", filename, diags.Error())
	}

	return &m, nil
}

// Collection expands the named sweep. ErrNotFound when the manifest has no
// sweep with that name.
func (m *Manifest) Collection(name string) (*core.ConfigCollection, error) {
	for _, s := range m.Sweeps {
		if s.Name == name {
			return s.Expand()
		}
	}
	return nil, fmt.Errorf("%w: no sweep %q in manifest", core.ErrNotFound, name)
}

// Collections expands every sweep in declaration order.
func (m *Manifest) Collections() ([]*core.ConfigCollection, error) {
	cols := make([]*core.ConfigCollection, 0, len(m.Sweeps))
	for _, s := range m.Sweeps {
		col, err := s.Expand()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// axis is an Axis with its values materialized.
type axis struct {
	name   string
	values []any
}

// Expand materializes the sweep into a collection: the cartesian product of
// all axes in declaration order, last axis fastest, each entry carrying the
// consts and drawing fresh values for the declared seed fields. The
// collection's info falls back to the sweep label when `info` is unset.
func (s *Sweep) Expand() (*core.ConfigCollection, error) {
	consts, err := s.constParams()
	if err != nil {
		return nil, err
	}

	axes, err := s.materializeAxes(consts)
	if err != nil {
		return nil, err
	}

	if len(axes) == 0 && len(consts) == 0 {
		return nil, fmt.Errorf("sweep %q defines no axes and no constants", s.Name)
	}

	info := s.Info
	if info == "" {
		info = s.Name
	}
	col := core.NewCollection(info)

	total := 1
	for _, a := range axes {
		total *= len(a.values)
	}

	for i := 0; i < total; i++ {
		params := make(map[string]any, len(consts)+len(axes))
		for name, v := range consts {
			params[name] = v
		}

		rem := i
		for j := len(axes) - 1; j >= 0; j-- {
			a := axes[j]
			params[a.name] = a.values[rem%len(a.values)]
			rem /= len(a.values)
		}

		entry, err := core.NewEntry(params, func(o *core.EntryOptions) {
			o.Phase = s.Phase
			o.SeedFields = append([]string(nil), s.Seeds...)
		})
		if err != nil {
			return nil, fmt.Errorf("sweep %q: %w", s.Name, err)
		}
		if _, err := col.Append(entry); err != nil {
			return nil, fmt.Errorf("sweep %q: %w", s.Name, err)
		}
	}

	return col, nil
}

// constParams evaluates the const block's attributes to Go scalars.
func (s *Sweep) constParams() (map[string]any, error) {
	consts := make(map[string]any)
	if s.Const == nil {
		return consts, nil
	}

	attrs, diags := s.Const.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("sweep %q const block: %s", s.Name, diags.Error())
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("sweep %q const %q: %s", s.Name, name, diags.Error())
		}
		scalar, err := scalarFromCty(val)
		if err != nil {
			return nil, fmt.Errorf("sweep %q const %q: %w", s.Name, name, err)
		}
		consts[name] = scalar
	}

	return consts, nil
}

// materializeAxes validates the axis blocks and evaluates their values.
func (s *Sweep) materializeAxes(consts map[string]any) ([]axis, error) {
	axes := make([]axis, 0, len(s.Axes))
	seen := make(map[string]struct{}, len(s.Axes))

	for _, a := range s.Axes {
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("sweep %q: duplicate axis %q", s.Name, a.Name)
		}
		seen[a.Name] = struct{}{}

		if _, clash := consts[a.Name]; clash {
			return nil, fmt.Errorf("sweep %q: axis %q collides with a const of the same name", s.Name, a.Name)
		}

		values, err := a.materialize()
		if err != nil {
			return nil, fmt.Errorf("sweep %q: %w", s.Name, err)
		}
		axes = append(axes, axis{name: a.Name, values: values})
	}

	return axes, nil
}

func (a *Axis) materialize() ([]any, error) {
	hasValues := a.Values != cty.NilVal && !a.Values.IsNull()

	switch {
	case hasValues && a.Range != nil:
		return nil, fmt.Errorf("axis %q declares both values and a range", a.Name)
	case !hasValues && a.Range == nil:
		return nil, fmt.Errorf("axis %q declares neither values nor a range", a.Name)
	case a.Range != nil:
		if a.Range.Count < 1 {
			return nil, fmt.Errorf("axis %q: range count must be positive, got %d", a.Name, a.Range.Count)
		}
		if a.Range.From > a.Range.To {
			return nil, fmt.Errorf("axis %q: range from %v exceeds to %v", a.Name, a.Range.From, a.Range.To)
		}
		points := linspace(a.Range.From, a.Range.To, a.Range.Count)
		values := make([]any, len(points))
		for i, p := range points {
			values[i] = p
		}
		return values, nil
	}

	ty := a.Values.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return nil, fmt.Errorf("axis %q: values must be a list, got %s", a.Name, ty.FriendlyName())
	}

	var values []any
	for it := a.Values.ElementIterator(); it.Next(); {
		_, v := it.Element()
		scalar, err := scalarFromCty(v)
		if err != nil {
			return nil, fmt.Errorf("axis %q: %w", a.Name, err)
		}
		values = append(values, scalar)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("axis %q: values list is empty", a.Name)
	}

	return values, nil
}

// linspace returns count evenly spaced values from from to to inclusive.
func linspace(from, to float64, count int) []float64 {
	if count == 1 {
		return []float64{from}
	}

	out := make([]float64, count)
	step := (to - from) / float64(count-1)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	out[count-1] = to
	return out
}

// scalarFromCty converts a primitive cty value to the Go scalar the entry
// constructor accepts.
func scalarFromCty(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, fmt.Errorf("value is null or unknown")
	}
	if !val.Type().IsPrimitiveType() {
		return nil, fmt.Errorf("parameter values must be scalars, got %s", val.Type().FriendlyName())
	}

	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case cty.Bool:
		return val.True(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", val.Type().FriendlyName())
	}
}
