// Package ilp describes 0-1 integer programs independently of the engine
// that solves them.
package ilp

import (
	"fmt"
	"math"
	"strings"
)

type Sense int

const (
	Maximize Sense = iota
	Minimize
)

func (s Sense) String() string {
	if s == Minimize {
		return "Minimize"
	}
	return "Maximize"
}

type Relation int

const (
	LessEqual Relation = iota
	GreaterEqual
	Equal
)

func (r Relation) String() string {
	switch r {
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return "<="
}

type Term struct {
	Var  int
	Coef float64
}

type Constraint struct {
	Name     string
	Terms    []Term
	Relation Relation
	RHS      float64
}

// Activity is the left hand side evaluated at values.
func (c *Constraint) Activity(values []float64) float64 {
	var ret float64
	for _, term := range c.Terms {
		ret += term.Coef * values[term.Var]
	}

	return ret
}

func (c *Constraint) Satisfied(values []float64, tol float64) bool {
	activity := c.Activity(values)
	switch c.Relation {
	case LessEqual:
		return activity <= c.RHS+tol
	case GreaterEqual:
		return activity >= c.RHS-tol
	}
	return math.Abs(activity-c.RHS) <= tol
}

// Model holds binary variables, linear constraints over them, a linear
// objective and an optional warm start.
type Model struct {
	Name string

	names       []string
	constraints []Constraint
	objective   []float64
	sense       Sense
	start       []int
}

func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddBinary declares a 0-1 variable and returns its index.
func (m *Model) AddBinary(name string) int {
	m.names = append(m.names, name)
	m.objective = append(m.objective, 0)

	return len(m.names) - 1
}

// AddConstraint merges repeated variables and drops zero coefficients.
func (m *Model) AddConstraint(name string, terms []Term, relation Relation, rhs float64) {
	m.constraints = append(m.constraints, Constraint{
		Name:     name,
		Terms:    m.normalize(terms),
		Relation: relation,
		RHS:      rhs,
	})
}

func (m *Model) SetObjective(sense Sense, terms []Term) {
	m.sense = sense
	for i := range m.objective {
		m.objective[i] = 0
	}
	for _, term := range m.normalize(terms) {
		m.objective[term.Var] = term.Coef
	}
}

// SetStart proposes the variables set to one in a known solution.
func (m *Model) SetStart(vars []int) {
	for _, v := range vars {
		m.checkVar(v)
	}
	m.start = append([]int(nil), vars...)
}

func (m *Model) NumVars() int { return len(m.names) }

func (m *Model) VarName(v int) string { return m.names[v] }

func (m *Model) Constraints() []Constraint { return m.constraints }

func (m *Model) Objective() []float64 { return m.objective }

func (m *Model) Sense() Sense { return m.sense }

func (m *Model) Start() []int { return m.start }

func (m *Model) Evaluate(values []float64) float64 {
	var ret float64
	for v, coef := range m.objective {
		ret += coef * values[v]
	}

	return ret
}

func (m *Model) Feasible(values []float64, tol float64) bool {
	for i := range m.constraints {
		if !m.constraints[i].Satisfied(values, tol) {
			return false
		}
	}

	return true
}

func (m *Model) checkVar(v int) {
	if v < 0 || v >= len(m.names) {
		panic(fmt.Sprintf("variable %d is not declared in model %s", v, m.Name))
	}
}

func (m *Model) normalize(terms []Term) []Term {
	index := make(map[int]int, len(terms))
	ret := make([]Term, 0, len(terms))
	for _, term := range terms {
		m.checkVar(term.Var)
		if i, ok := index[term.Var]; ok {
			ret[i].Coef += term.Coef
			continue
		}
		index[term.Var] = len(ret)
		ret = append(ret, term)
	}

	nonZero := ret[:0]
	for _, term := range ret {
		if term.Coef != 0 {
			nonZero = append(nonZero, term)
		}
	}

	return nonZero
}

// String renders the model in CPLEX LP format.
func (m *Model) String() string {
	var b strings.Builder

	writeTerms := func(terms []Term) {
		if len(terms) == 0 {
			b.WriteString(" 0")
			return
		}
		for i, term := range terms {
			coef := term.Coef
			switch {
			case i == 0 && coef < 0:
				b.WriteString(" -")
				coef = -coef
			case i == 0:
				b.WriteString(" ")
			case coef < 0:
				b.WriteString(" - ")
				coef = -coef
			default:
				b.WriteString(" + ")
			}
			fmt.Fprintf(&b, "%g %s", coef, m.names[term.Var])
		}
	}

	fmt.Fprintf(&b, "\\ Model %s\n%s\n obj:", m.Name, m.sense)
	objective := make([]Term, 0, len(m.objective))
	for v, coef := range m.objective {
		if coef != 0 {
			objective = append(objective, Term{Var: v, Coef: coef})
		}
	}
	writeTerms(objective)

	b.WriteString("\nSubject To\n")
	for i, constraint := range m.constraints {
		fmt.Fprintf(&b, " %s_%d:", constraint.Name, i)
		writeTerms(constraint.Terms)
		fmt.Fprintf(&b, " %s %g\n", constraint.Relation, constraint.RHS)
	}

	b.WriteString("Binaries\n")
	for _, name := range m.names {
		fmt.Fprintf(&b, " %s\n", name)
	}
	b.WriteString("End\n")

	return b.String()
}
