// Package roi implements the ROI calculator formulas, their input constraints
// and the German number formatting used by the landing pages and the emails.
package roi

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Values holds calculator inputs keyed by field name. Absent keys are
// treated as "not provided" by Validate.
type Values map[string]float64

// Snapshot holds derived outputs (and optionally the inputs that produced
// them) keyed by name. A nil entry is an explicitly absent value.
type Snapshot map[string]*float64

// Get returns the value for name and whether it is present and non-nil.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Field declares one bounded calculator input.
type Field struct {
	Name      string
	Min       float64
	Max       float64
	Step      float64
	Integer   bool
	Percent   bool
	Attribute string
	// Message is rendered with {min} and {max} replaced by the bounds.
	Message string
}

// Contains reports whether v lies within the field's declared range.
func (f Field) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= f.Min && v <= f.Max
}

// RangeMessage renders the German out-of-range message for the field.
func (f Field) RangeMessage() string {
	return strings.NewReplacer(
		"{min}", f.bound(f.Min),
		"{max}", f.bound(f.Max),
	).Replace(f.Message)
}

func (f Field) bound(v float64) string {
	if f.Percent {
		return FormatPercentage(v)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Output declares one derived value.
type Output struct {
	Name      string
	Attribute string
	Decimals  int
	Nullable  bool
}

// Variant is one calculator framing: its inputs, its outputs and the
// formula that maps one to the other.
type Variant struct {
	Name     string
	Fields   []Field
	Outputs  []Output
	Defaults Values
	evaluate func(Values) Snapshot
}

// Field looks up an input declaration by name.
func (v *Variant) Field(name string) (Field, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Output looks up an output declaration by name.
func (v *Variant) Output(name string) (Output, bool) {
	for _, o := range v.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// Calculate evaluates the formula. Inputs missing from in are taken from
// the variant defaults. The result contains outputs only.
func (v *Variant) Calculate(in Values) Snapshot {
	merged := make(Values, len(v.Fields))
	for k, val := range v.Defaults {
		merged[k] = val
	}
	for k, val := range in {
		merged[k] = val
	}
	return v.evaluate(merged)
}

// Snapshot evaluates the formula and returns inputs and outputs merged into
// one record, the shape the lead form submits with step two.
func (v *Variant) Snapshot(in Values) Snapshot {
	out := v.Calculate(in)
	for _, f := range v.Fields {
		val, ok := in[f.Name]
		if !ok {
			val = v.Defaults[f.Name]
		}
		out[f.Name] = floatPtr(val)
	}
	return out
}

// Attributes maps a snapshot onto CRM attribute names. Percent inputs are
// stored as whole numbers between 0 and 100.
func (v *Variant) Attributes(s Snapshot) map[string]interface{} {
	attrs := make(map[string]interface{}, len(v.Fields)+len(v.Outputs))
	for _, f := range v.Fields {
		val, ok := s[f.Name]
		if !ok {
			continue
		}
		if val == nil {
			attrs[f.Attribute] = nil
			continue
		}
		if f.Percent {
			attrs[f.Attribute] = roundHalfUp(*val * 100)
			continue
		}
		attrs[f.Attribute] = *val
	}
	for _, o := range v.Outputs {
		val, ok := s[o.Name]
		if !ok {
			continue
		}
		if val == nil {
			attrs[o.Attribute] = nil
			continue
		}
		attrs[o.Attribute] = *val
	}
	return attrs
}

// JSONSchema describes a snapshot object for this variant: every input and
// output must be present and numeric, nullable outputs may be null.
func (v *Variant) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(v.Fields)+len(v.Outputs))
	required := make([]string, 0, len(v.Fields)+len(v.Outputs))
	for _, f := range v.Fields {
		props[f.Name] = map[string]interface{}{"type": "number"}
		required = append(required, f.Name)
	}
	for _, o := range v.Outputs {
		if o.Nullable {
			props[o.Name] = map[string]interface{}{"type": []string{"number", "null"}}
		} else {
			props[o.Name] = map[string]interface{}{"type": "number"}
		}
		required = append(required, o.Name)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var registry = map[string]*Variant{
	Monetary.Name: Monetary,
	Time.Name:     Time,
}

// Lookup returns the registered variant with the given name.
func Lookup(name string) (*Variant, error) {
	v, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown calculator variant %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return v, nil
}

// Names lists the registered variant names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func floatPtr(v float64) *float64 {
	return &v
}

// roundHalfUp rounds to the nearest integer with ties going up, the way the
// browser widget rounds.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func round1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
