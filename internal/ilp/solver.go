package ilp

import (
	"context"
	"errors"
)

var (
	ErrInfeasible = errors.New("integer program is infeasible")
	ErrUnbounded  = errors.New("integer program is unbounded")
	ErrNotSolved  = errors.New("integer program was not solved")
)

type Status int

const (
	NotSolved Status = iota
	Optimal
	// A solution was found but optimality was not proven in time.
	Feasible
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	}
	return "not solved"
}

// Err maps the statuses without a usable solution to an error.
func (s Status) Err() error {
	switch s {
	case Optimal, Feasible:
		return nil
	case Infeasible:
		return ErrInfeasible
	case Unbounded:
		return ErrUnbounded
	}
	return ErrNotSolved
}

type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Nodes     int
}

// Selected lists the variables set to one.
func (s Solution) Selected() []int {
	ret := make([]int, 0)
	for v, value := range s.Values {
		if value > 0.5 {
			ret = append(ret, v)
		}
	}

	return ret
}

// Solver is any engine able to solve a Model. An error means the engine
// failed; infeasibility is reported through Solution.Status.
type Solver interface {
	Solve(ctx context.Context, m *Model) (Solution, error)
}
