package inspect

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/robert-malhotra/h5export/internal/snapshot"
)

// Stat summarises one component of one task at one timestep.
type Stat struct {
	Task      string  `yaml:"task"`
	Component string  `yaml:"component"`
	Step      int     `yaml:"step"`
	Time      float64 `yaml:"time"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Mean      float64 `yaml:"mean"`
	Std       float64 `yaml:"std"`
}

// SampleSteps returns the first, quarter, half and last step indices of a
// series of n steps, without duplicates.
func SampleSteps(n int) []int {
	if n <= 0 {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, i := range []int{0, n / 4, n / 2, n - 1} {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// Stats reads every task of the archive and summarises it at steps. Nil steps
// means SampleSteps. Std is the population standard deviation.
func Stats(h snapshot.Handle, steps []int) ([]Stat, error) {
	a, err := snapshot.Scan(h)
	if err != nil {
		return nil, err
	}
	if steps == nil {
		steps = SampleSteps(a.Steps())
	}
	for _, i := range steps {
		if i < 0 || i >= a.Steps() {
			return nil, fmt.Errorf("step %d outside [0, %d)", i, a.Steps())
		}
	}

	var out []Stat
	for _, t := range a.Tasks {
		f, err := snapshot.ReadField(h, t)
		if err != nil {
			return nil, err
		}
		for c := 0; c < t.Components(); c++ {
			name := t.Name
			if t.Kind == snapshot.Vector {
				name = t.Channel(c)
			}
			for _, i := range steps {
				out = append(out, summarise(t.Name, name, i, a.Time[i], f.Component(i, c)))
			}
		}
	}
	return out, nil
}

func summarise(task, component string, step int, time float64, v []float64) Stat {
	mean, std := stat.PopMeanStdDev(v, nil)
	return Stat{
		Task:      task,
		Component: component,
		Step:      step,
		Time:      time,
		Min:       floats.Min(v),
		Max:       floats.Max(v),
		Mean:      mean,
		Std:       std,
	}
}

// WriteStats prints stats as an aligned table.
func WriteStats(w io.Writer, stats []Stat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tCOMPONENT\tSTEP\tTIME\tMIN\tMAX\tMEAN\tSTD")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.6f\t%.6f\t%.6f\t%.6f\n",
			s.Task, s.Component, s.Step, s.Time, s.Min, s.Max, s.Mean, s.Std)
	}
	return tw.Flush()
}
