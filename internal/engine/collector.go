// Metrics collection: one record per step, captured before that step's activations.
package engine

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/rockladyeagles/polarmodel/internal/agents"
)

// DispersionName is the column holding the pooled opinion variance.
const DispersionName = "MeanOpinionVar"

const (
	trackedAgents = 4
	trackedIssues = 3
)

// Reading is one named single-opinion series.
type Reading struct {
	Name  string `json:"name"`
	Agent int    `json:"agent"`
	Issue int    `json:"issue"`
}

// Value returns the tracked opinion from the population.
func (r Reading) Value(pop []*agents.Agent) float64 {
	return pop[r.Agent].Opinions[r.Issue]
}

// DefaultReadings tracks the first min(4,n) agents on the first min(3,issues) issues.
func DefaultReadings(n, issues int) []Reading {
	na := min(trackedAgents, n)
	ni := min(trackedIssues, issues)

	readings := make([]Reading, 0, na*ni)
	for a := 0; a < na; a++ {
		for i := 0; i < ni; i++ {
			readings = append(readings, Reading{
				Name:  fmt.Sprintf("agent%d_iss%d", a, i),
				Agent: a,
				Issue: i,
			})
		}
	}
	return readings
}

// Dispersion pools every agent's opinion on every issue into one sample and
// returns its population variance.
func Dispersion(pop []*agents.Agent) float64 {
	if len(pop) == 0 {
		return 0
	}
	issues := pop[0].NumIssues()
	pooled := make([]float64, 0, len(pop)*issues)
	for i := 0; i < issues; i++ {
		for _, a := range pop {
			pooled = append(pooled, a.Opinions[i])
		}
	}
	return stat.PopVariance(pooled, nil)
}

// Record maps metric name to value for one step.
type Record map[string]float64

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the collected series laid out by step (row) and metric (column).
type Table struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Len returns the number of steps.
func (t Table) Len() int {
	return len(t.Rows)
}

// Column returns one column by name, or nil if absent.
func (t Table) Column(name string) []float64 {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[idx]
	}
	return out
}

// Collector is the append-only time series of a run.
type Collector struct {
	readings []Reading
	records  []Record
}

// NewCollector builds a collector for a fixed set of readings.
func NewCollector(readings []Reading) *Collector {
	return &Collector{readings: append([]Reading(nil), readings...)}
}

// Collect appends one record for the current population state and returns it.
// It only reads the population.
func (c *Collector) Collect(pop []*agents.Agent) Record {
	rec := make(Record, len(c.readings)+1)
	for _, r := range c.readings {
		rec[r.Name] = r.Value(pop)
	}
	rec[DispersionName] = Dispersion(pop)
	c.records = append(c.records, rec)
	return rec.clone()
}

// Len returns the number of records collected.
func (c *Collector) Len() int {
	return len(c.records)
}

// Readings returns the tracked readings in column order.
func (c *Collector) Readings() []Reading {
	return append([]Reading(nil), c.readings...)
}

// Columns returns reading names in order, then DispersionName.
func (c *Collector) Columns() []string {
	cols := make([]string, 0, len(c.readings)+1)
	for _, r := range c.readings {
		cols = append(cols, r.Name)
	}
	return append(cols, DispersionName)
}

// Records returns copies of every record in step order.
func (c *Collector) Records() []Record {
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.clone()
	}
	return out
}

// Series returns one metric across all steps, or nil for an unknown name.
func (c *Collector) Series(name string) []float64 {
	if len(c.records) == 0 {
		return nil
	}
	if _, ok := c.records[0][name]; !ok {
		return nil
	}
	out := make([]float64, len(c.records))
	for i, r := range c.records {
		out[i] = r[name]
	}
	return out
}

// Last returns the most recent record.
func (c *Collector) Last() (Record, bool) {
	if len(c.records) == 0 {
		return nil, false
	}
	return c.records[len(c.records)-1].clone(), true
}

// Table lays the records out by step, columns following Columns().
func (c *Collector) Table() Table {
	cols := c.Columns()
	rows := make([][]float64, len(c.records))
	for i, r := range c.records {
		row := make([]float64, len(cols))
		for j, name := range cols {
			row[j] = r[name]
		}
		rows[i] = row
	}
	return Table{Columns: cols, Rows: rows}
}
