// Package sweep runs a grid of independent simulations that vary one
// parameter, with several seeded replicates per grid value.
package sweep

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/rockladyeagles/polarmodel/internal/engine"
)

// Variable names the parameter a sweep varies.
type Variable string

const (
	VarAgents   Variable = "agents"
	VarIssues   Variable = "issues"
	VarCthresh  Variable = "cthresh"
	VarEdgeProb Variable = "edge_prob"
)

// ErrInvalidPlan classifies plan validation failures.
var ErrInvalidPlan = errors.New("sweep: invalid plan")

// Plan describes a sweep. Values run from From up to but excluding To in
// increments of Step.
type Plan struct {
	Base       engine.Params `json:"base" yaml:"-" validate:"-"`
	Variable   Variable      `json:"variable" yaml:"variable" validate:"oneof=agents issues cthresh edge_prob"`
	From       float64       `json:"from" yaml:"from"`
	To         float64       `json:"to" yaml:"to"`
	Step       float64       `json:"step" yaml:"step" validate:"gt=0"`
	Replicates int           `json:"replicates" yaml:"replicates" validate:"gte=1"`
	Workers    int           `json:"workers" yaml:"workers" validate:"gte=0"` // 0 = one per CPU
	Tolerance  float64       `json:"tolerance" yaml:"tolerance" validate:"gte=0"`
}

// DefaultPlan varies the population from 10 to 95 in steps of 5 with ten
// replicates of 1000 steps each.
func DefaultPlan() Plan {
	base := engine.DefaultParams()
	base.MaxSteps = 1000
	return Plan{
		Base:       base,
		Variable:   VarAgents,
		From:       10,
		To:         100,
		Step:       5,
		Replicates: 10,
		Tolerance:  1e-4,
	}
}

var validate = validator.New()

// Values expands the grid.
func (p Plan) Values() []float64 {
	if p.Step <= 0 || p.To <= p.From {
		return nil
	}
	n := int(math.Ceil((p.To - p.From) / p.Step))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = p.From + float64(i)*p.Step
	}
	return vals
}

// Runs returns the number of simulations the plan executes.
func (p Plan) Runs() int {
	return len(p.Values()) * p.Replicates
}

// Validate checks the plan and every parameter set it expands to.
func (p Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	vals := p.Values()
	if len(vals) == 0 {
		return fmt.Errorf("%w: empty grid from=%v to=%v step=%v", ErrInvalidPlan, p.From, p.To, p.Step)
	}
	for _, v := range vals {
		if err := p.Apply(v).Validate(); err != nil {
			return fmt.Errorf("%w: %s=%v: %w", ErrInvalidPlan, p.Variable, v, err)
		}
	}
	return nil
}

// Apply returns the base parameters with the swept variable set to v.
// Integer variables are rounded to the nearest whole number.
func (p Plan) Apply(v float64) engine.Params {
	params := p.Base
	switch p.Variable {
	case VarAgents:
		params.Agents = int(math.Round(v))
	case VarIssues:
		params.Issues = int(math.Round(v))
	case VarCthresh:
		params.Cthresh = v
	case VarEdgeProb:
		params.EdgeProb = v
	}
	return params
}
