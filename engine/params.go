package engine

import (
	"fmt"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
)

// suppliedParam is a parameter as it arrived, with any error raised while
// decoding it from memory.
type suppliedParam struct {
	err   error
	value entities.NamedValue
}

// Params holds validated parameters keyed by id. Every declared parameter
// is present with its declared kind.
type Params struct {
	values map[string]entities.Value
}

// NewParams builds Params directly, bypassing validation. It is meant for
// unit tests of handlers.
func NewParams(values ...entities.NamedValue) Params {
	p := Params{values: make(map[string]entities.Value, len(values))}
	for _, nv := range values {
		p.values[nv.Name] = nv.Value
	}
	return p
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.values)
}

// Get returns the parameter with the given id.
func (p Params) Get(id string) (entities.Value, bool) {
	v, ok := p.values[id]
	return v, ok
}

func (p Params) lookup(id string) (entities.Value, error) {
	v, ok := p.values[id]
	if !ok {
		return entities.Value{}, fmt.Errorf("no parameter %q", id)
	}
	return v, nil
}

// Int32 returns an INTEGER parameter.
func (p Params) Int32(id string) (int32, error) {
	v, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	return v.Integer()
}

// Float64 returns a DECIMAL parameter.
func (p Params) Float64(id string) (float64, error) {
	v, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	return v.Decimal()
}

// Bool returns a BOOLEAN parameter.
func (p Params) Bool(id string) (bool, error) {
	v, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return v.Boolean()
}

// Text returns a STRING parameter.
func (p Params) Text(id string) (string, error) {
	v, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	return v.Str()
}

// MustInt32 is like Int32 but panics on error. After validation a declared
// INTEGER parameter is always present, so handlers may use it freely.
func (p Params) MustInt32(id string) int32 {
	v, err := p.Int32(id)
	if err != nil {
		panic(err)
	}
	return v
}

// MustFloat64 is like Float64 but panics on error.
func (p Params) MustFloat64(id string) float64 {
	v, err := p.Float64(id)
	if err != nil {
		panic(err)
	}
	return v
}

// MustBool is like Bool but panics on error.
func (p Params) MustBool(id string) bool {
	v, err := p.Bool(id)
	if err != nil {
		panic(err)
	}
	return v
}

// MustText is like Text but panics on error.
func (p Params) MustText(id string) string {
	v, err := p.Text(id)
	if err != nil {
		panic(err)
	}
	return v
}

// bindParameters validates the supplied parameters against the declaration.
// Parameters are checked in the order supplied and the first problem wins:
// an unknown or repeated name, then an undecodable or wrongly typed value.
// Only after every supplied parameter passed is the first missing declared
// parameter reported.
func bindParameters(meta entities.InstructionMetadata, supplied []suppliedParam) (Params, error) {
	p := Params{values: make(map[string]entities.Value, len(meta.Parameters))}

	for _, sp := range supplied {
		name := sp.value.Name
		if name == "" && sp.err != nil {
			return Params{}, &domainerrors.InvalidParameterError{Err: sp.err}
		}
		desc, ok := meta.Parameter(name)
		if !ok {
			return Params{}, &domainerrors.InvalidParameterError{Name: name}
		}
		if _, seen := p.values[name]; seen {
			return Params{}, &domainerrors.InvalidParameterError{Name: name, Duplicate: true}
		}
		if sp.err != nil {
			return Params{}, &domainerrors.InvalidParameterTypeError{
				Err:  sp.err,
				ID:   desc.ID,
				Name: desc.Name,
				Want: desc.Kind,
				Got:  sp.value.Value.Kind(),
			}
		}
		if got := sp.value.Value.Kind(); got != desc.Kind {
			return Params{}, &domainerrors.InvalidParameterTypeError{
				ID:   desc.ID,
				Name: desc.Name,
				Want: desc.Kind,
				Got:  got,
			}
		}
		p.values[name] = sp.value.Value
	}

	for _, desc := range meta.Parameters {
		if _, ok := p.values[desc.ID]; !ok {
			return Params{}, &domainerrors.MissingParameterError{ID: desc.ID, Name: desc.Name}
		}
	}
	return p, nil
}
