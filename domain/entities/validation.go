package entities

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

var (
	luaIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	taIdentPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
)

// validate is shared; creating a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "luaident", func(fl validator.FieldLevel) bool {
		return luaIdentPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "taident", func(fl validator.FieldLevel) bool {
		return taIdentPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "kind", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Uint32 {
			return false
		}
		return ParameterKind(fl.Field().Uint()).Valid()
	})
	mustRegister(v, "glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("entities: register %q validation: %v", tag, err))
	}
}

// Validate checks the engine metadata for well-formedness.
func (m EngineMetadata) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid engine metadata: %w", err)
	}
	return nil
}

// Validate checks the instruction metadata for well-formedness, including
// that parameter and output ids are unique.
func (m InstructionMetadata) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid instruction %q: %w", m.ID, err)
	}
	return nil
}

// ValidationError is one problem found in operator-supplied input.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects the problems found in operator-supplied input.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
	Valid  bool              `json:"valid"`
}

// Error renders every problem on its own line.
func (r *ValidationResult) Error() string {
	var b strings.Builder
	for i, e := range r.Errors {
		if i > 0 {
			b.WriteByte('\n')
		}
		if e.Field != "" {
			b.WriteString(e.Field)
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	return b.String()
}

// Validate checks the host configuration. Failures are returned as
// validator.ValidationErrors.
func (c HostConfig) Validate() error {
	return validate.Struct(c)
}
