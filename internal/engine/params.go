// Simulation parameters and their validation.
package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rockladyeagles/polarmodel/internal/network"
)

// ErrInvalidConfig classifies every parameter validation failure.
var ErrInvalidConfig = errors.New("engine: invalid configuration")

// ConfigError reports one parameter that violates its rule.
type ConfigError struct {
	Field string
	Value any
	Rule  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine: invalid configuration: %s=%v (must satisfy %s)", e.Field, e.Value, e.Rule)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Params configures one simulation run.
//
//	T        MaxSteps   max number of iterations
//	N        Agents     number of citizens
//	I        Issues     number of issues citizens hold an opinion on
//	Cthresh  Cthresh    comparison threshold for the compare/persuade rule
//	ER_p     EdgeProb   edge probability of the random graph
type Params struct {
	MaxSteps         int     `json:"max_steps" yaml:"max_steps" validate:"gte=1"`
	Agents           int     `json:"agents" yaml:"agents" validate:"gte=2"`
	Issues           int     `json:"issues" yaml:"issues" validate:"gte=2"`
	Cthresh          float64 `json:"cthresh" yaml:"cthresh" validate:"gte=0,lte=1"`
	EdgeProb         float64 `json:"edge_prob" yaml:"edge_prob" validate:"gte=0,lte=1"`
	Seed             int64   `json:"seed" yaml:"seed"`
	MaxGraphAttempts int     `json:"max_graph_attempts" yaml:"max_graph_attempts" validate:"gte=0"`
}

// DefaultParams returns the single-run demonstration parameters.
func DefaultParams() Params {
	return Params{
		MaxSteps:         400,
		Agents:           40,
		Issues:           10,
		Cthresh:          0.05,
		EdgeProb:         0.2,
		Seed:             123,
		MaxGraphAttempts: network.DefaultMaxAttempts,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config-file names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every parameter. The result wraps one *ConfigError per
// violated field and matches ErrInvalidConfig.
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		errs = append(errs, &ConfigError{Field: fe.Field(), Value: fe.Value(), Rule: rule})
	}
	return errors.Join(errs...)
}
