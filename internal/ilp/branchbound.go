package ilp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/amsen20/lotos/logging"
	"github.com/amsen20/lotos/statistics"
	"github.com/emirpasic/gods/stacks/arraystack"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

var log = logging.Get()

const (
	free int8 = -1

	// The context is polled once every this many nodes.
	pollEvery = 64
)

// BranchBound is a depth first branch and bound over 0-1 variables. Nodes are
// tightened by bound propagation and pruned with the LP relaxation when it is
// small enough, and otherwise with dual bounds built from the constraint
// families (rows sharing a name).
type BranchBound struct {
	// Feasibility tolerance of constraints.
	Tolerance float64
	// Absolute gap below which a node cannot improve the incumbent.
	Gap float64
	// LP relaxations are used only while at most this many variables are
	// free; zero disables them.
	LPBoundMaxVars int
}

func NewBranchBound(lpBoundMaxVars int) *BranchBound {
	return &BranchBound{
		Tolerance:      1e-6,
		Gap:            1e-6,
		LPBoundMaxVars: lpBoundMaxVars,
	}
}

type row struct {
	name     string
	vars     []int
	coefs    []float64
	relation Relation
	rhs      float64
}

type search struct {
	*BranchBound

	// Objective in maximization form.
	objective []float64
	rows      []row

	// Row indexes by constraint name, in order of first appearance.
	families [][]int

	best    []int8
	bestObj float64
	nodes   int
}

func (b *BranchBound) Solve(ctx context.Context, m *Model) (Solution, error) {
	s := &search{BranchBound: b}
	n := m.NumVars()

	sign := 1.0
	if m.Sense() == Minimize {
		sign = -1
	}
	s.objective = make([]float64, n)
	for v, coef := range m.Objective() {
		s.objective[v] = sign * coef
	}
	familyOf := make(map[string]int)
	for _, constraint := range m.Constraints() {
		r := row{name: constraint.Name, relation: constraint.Relation, rhs: constraint.RHS}
		for _, term := range constraint.Terms {
			r.vars = append(r.vars, term.Var)
			r.coefs = append(r.coefs, term.Coef)
		}
		s.rows = append(s.rows, r)

		family, ok := familyOf[r.name]
		if !ok {
			family = len(s.families)
			familyOf[r.name] = family
			s.families = append(s.families, nil)
		}
		s.families[family] = append(s.families[family], len(s.rows)-1)
	}

	s.warmStart(m)

	root := make([]int8, n)
	for i := range root {
		root[i] = free
	}
	stack := arraystack.New()
	stack.Push(root)

	interrupted := false
	for !stack.Empty() {
		if s.nodes%pollEvery == 0 && ctx.Err() != nil {
			interrupted = true
			break
		}
		item, _ := stack.Pop()
		fixed := item.([]int8)
		s.nodes++

		if !s.propagate(fixed) {
			continue
		}
		bound, ok := s.bound(fixed)
		if !ok || (s.best != nil && bound <= s.bestObj+s.Gap) {
			continue
		}

		branch := s.branchVar(fixed)
		if branch < 0 {
			s.best = fixed
			s.bestObj = s.value(fixed)
			continue
		}

		zero := append([]int8(nil), fixed...)
		zero[branch] = 0
		one := append([]int8(nil), fixed...)
		one[branch] = 1
		// The last pushed node is explored first.
		if s.objective[branch] > 0 {
			stack.Push(zero)
			stack.Push(one)
		} else {
			stack.Push(one)
			stack.Push(zero)
		}
	}

	statistics.Change(statistics.SOLVER_NODES, s.nodes)
	log.Debug().Str("model", m.Name).Int("nodes", s.nodes).Bool("interrupted", interrupted).Msg("branch and bound finished")

	solution := Solution{Status: NotSolved, Nodes: s.nodes}
	if s.best != nil {
		solution.Values = make([]float64, n)
		for v, value := range s.best {
			solution.Values[v] = float64(value)
		}
		solution.Objective = m.Evaluate(solution.Values)
		solution.Status = Optimal
		if interrupted {
			solution.Status = Feasible
		}
	} else if !interrupted {
		solution.Status = Infeasible
	}

	return solution, nil
}

func (s *search) warmStart(m *Model) {
	if len(m.Start()) == 0 {
		return
	}

	start := make([]int8, m.NumVars())
	for _, v := range m.Start() {
		start[v] = 1
	}
	if !s.propagate(start) {
		log.Debug().Str("model", m.Name).Msg("warm start is infeasible, ignoring it")
		return
	}
	s.best = start
	s.bestObj = s.value(start)
}

// branchVar is the free variable with the largest objective coefficient,
// the lowest index on ties, or -1 once everything is fixed.
func (s *search) branchVar(fixed []int8) int {
	ret := -1
	for v, value := range fixed {
		if value != free {
			continue
		}
		if ret < 0 || s.objective[v] > s.objective[ret] {
			ret = v
		}
	}

	return ret
}

func (s *search) value(fixed []int8) float64 {
	var ret float64
	for v, value := range fixed {
		if value == 1 {
			ret += s.objective[v]
		}
	}

	return ret
}

// propagate fixes the free variables forced by some constraint until nothing
// changes. It reports false once a constraint cannot be met.
func (s *search) propagate(fixed []int8) bool {
	for changed := true; changed; {
		changed = false

		for _, r := range s.rows {
			var minActivity, maxActivity float64
			for k, v := range r.vars {
				coef := r.coefs[k]
				switch {
				case fixed[v] == 1:
					minActivity += coef
					maxActivity += coef
				case fixed[v] == free && coef < 0:
					minActivity += coef
				case fixed[v] == free:
					maxActivity += coef
				}
			}

			if r.relation != GreaterEqual {
				if minActivity > r.rhs+s.Tolerance {
					return false
				}
				slack := r.rhs - minActivity
				for k, v := range r.vars {
					if fixed[v] != free || math.Abs(r.coefs[k]) <= slack+s.Tolerance {
						continue
					}
					if r.coefs[k] > 0 {
						fixed[v] = 0
					} else {
						fixed[v] = 1
					}
					changed = true
				}
			}

			if r.relation != LessEqual {
				if maxActivity < r.rhs-s.Tolerance {
					return false
				}
				slack := maxActivity - r.rhs
				for k, v := range r.vars {
					if fixed[v] != free || math.Abs(r.coefs[k]) <= slack+s.Tolerance {
						continue
					}
					if r.coefs[k] > 0 {
						fixed[v] = 1
					} else {
						fixed[v] = 0
					}
					changed = true
				}
			}
		}
	}

	return true
}

// bound is an upper bound of the objective over the completions of fixed.
// It reports false when the LP relaxation proves there are none.
func (s *search) bound(fixed []int8) (float64, bool) {
	fixedObj := s.value(fixed)
	freeVars := make([]int, 0)
	optimistic := fixedObj
	for v, value := range fixed {
		if value == free {
			freeVars = append(freeVars, v)
			optimistic += math.Max(0, s.objective[v])
		}
	}

	if len(freeVars) == 0 {
		return optimistic, true
	}
	for _, family := range s.families {
		if gain, ok := s.familyBound(fixed, family); ok {
			optimistic = math.Min(optimistic, fixedObj+gain)
		}
	}
	if len(freeVars) > s.LPBoundMaxVars {
		return optimistic, true
	}

	relaxed, err := s.relaxation(fixed, freeVars)
	if errors.Is(err, lp.ErrInfeasible) {
		return 0, false
	}
	if err != nil {
		return optimistic, true
	}

	return math.Min(optimistic, fixedObj+relaxed+s.Gap), true
}

// familyBound bounds the objective gain of the free variables with a dual
// solution supported on one family of <= or = rows with non negative
// coefficients on free variables. Every free variable with a positive
// coefficient must appear in the family. Two multipliers are tried: one
// shared by every row and one per row, and the smaller bound is kept.
func (s *search) familyBound(fixed []int8, family []int) (float64, bool) {
	cover := make(map[int]float64)
	var shared, perRow float64
	residuals := make([]float64, 0, len(family))

	for _, index := range family {
		r := s.rows[index]
		if r.relation == GreaterEqual {
			return 0, false
		}

		residual := r.rhs
		ratio := 0.0
		for k, v := range r.vars {
			coef := r.coefs[k]
			switch {
			case fixed[v] == 1:
				residual -= coef
			case fixed[v] == free && coef < 0:
				return 0, false
			case fixed[v] == free:
				cover[v] += coef
				if s.objective[v] > 0 {
					ratio = math.Max(ratio, s.objective[v]/coef)
				}
			}
		}
		residual = math.Max(0, residual)
		residuals = append(residuals, residual)
		perRow += ratio * residual
	}

	multiplier := 0.0
	for v, value := range fixed {
		if value != free || s.objective[v] <= 0 {
			continue
		}
		if cover[v] <= 0 {
			return 0, false
		}
		multiplier = math.Max(multiplier, s.objective[v]/cover[v])
	}
	for _, residual := range residuals {
		shared += multiplier * residual
	}

	return math.Min(shared, perRow), true
}

// relaxation maximizes the objective over the free variables relaxed to
// [0, 1], written in the standard form gonum expects:
//
//	x_j + u_j = 1 for every free variable
//	a.x + s = b, a.x - s = b or a.x = b for every row touching one
//
// with every variable non negative and rows scaled so that b >= 0.
func (s *search) relaxation(fixed []int8, freeVars []int) (optimum float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lp relaxation: %v", r)
		}
	}()

	column := make(map[int]int, len(freeVars))
	for j, v := range freeVars {
		column[v] = j
	}
	nf := len(freeVars)

	type denseRow struct {
		coefs    map[int]float64
		relation Relation
		rhs      float64
	}
	rows := make([]denseRow, 0, len(s.rows))
	inequalities := 0
	for _, r := range s.rows {
		dr := denseRow{coefs: make(map[int]float64), relation: r.relation, rhs: r.rhs}
		for k, v := range r.vars {
			switch fixed[v] {
			case 1:
				dr.rhs -= r.coefs[k]
			case free:
				dr.coefs[column[v]] += r.coefs[k]
			}
		}
		if len(dr.coefs) == 0 {
			continue
		}
		if dr.relation != Equal {
			inequalities++
		}
		rows = append(rows, dr)
	}

	nRows := nf + len(rows)
	nCols := 2*nf + inequalities
	if nCols < nRows {
		return 0, fmt.Errorf("lp relaxation has %d rows but %d columns", nRows, nCols)
	}

	A := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	c := make([]float64, nCols)
	for j, v := range freeVars {
		c[j] = -s.objective[v]
		A.Set(j, j, 1)
		A.Set(j, nf+j, 1)
		b[j] = 1
	}

	slack := 2 * nf
	for i, dr := range rows {
		at := nf + i
		sign := 1.0
		if dr.rhs < 0 {
			sign = -1
		}
		for j, coef := range dr.coefs {
			A.Set(at, j, sign*coef)
		}
		switch dr.relation {
		case LessEqual:
			A.Set(at, slack, sign)
			slack++
		case GreaterEqual:
			A.Set(at, slack, -sign)
			slack++
		}
		b[at] = sign * dr.rhs
	}

	optF, _, err := lp.Simplex(c, A, b, 1e-10, nil)
	if err != nil {
		return 0, err
	}

	return -optF, nil
}
