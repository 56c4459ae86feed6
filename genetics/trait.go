package genetics

import (
	"fmt"
	"io"
	"slices"
)

// Gene is one named trait of a genome, independent of its allele type.
type Gene interface {
	Name() string
	Len() int

	clone() Gene
	mutate(rng *Rng, cfg MutationConfig)
	recombine(father Gene, rng *Rng) bool
	fingerprint(w io.Writer)
}

// traitOf is satisfied by *Trait[T] and by types embedding it.
type traitOf[T any] interface {
	asTrait() *Trait[T]
}

// Mutator perturbs a trait's alleles in place. rate is the independent
// per-allele mutation probability.
type Mutator[T any] interface {
	Mutate(t *Trait[T], rng *Rng, rate float64)
}

// Trait is a fixed-length allele list with an expression strategy and a
// mutation increment (a step size for numbers, a permission flag for booleans).
type Trait[T any] struct {
	name              string
	Alleles           []T
	Expression        Expression[T]
	MutationIncrement T
	mutator           Mutator[T]
}

// NewTrait creates a trait with a custom mutator. A nil mutator makes the
// trait immune to mutation.
func NewTrait[T any](name string, alleles []T, expression Expression[T], increment T, mutator Mutator[T]) *Trait[T] {
	return &Trait[T]{
		name:              name,
		Alleles:           alleles,
		Expression:        expression,
		MutationIncrement: increment,
		mutator:           mutator,
	}
}

// NewFloatTrait creates a numeric trait whose alleles step by ±increment on
// mutation, never dropping below zero.
func NewFloatTrait(name string, alleles []float64, expression Expression[float64], increment float64) *Trait[float64] {
	return NewTrait(name, alleles, expression, increment, StepMutator{})
}

// NewBoolTrait creates a boolean trait. Its alleles flip on mutation only when
// mutable is true.
func NewBoolTrait(name string, alleles []bool, expression Expression[bool], mutable bool) *Trait[bool] {
	return NewTrait(name, alleles, expression, mutable, FlipMutator{})
}

func (t *Trait[T]) Name() string { return t.name }

func (t *Trait[T]) Len() int { return len(t.Alleles) }

// ExpressedValue evaluates the phenotype from the current alleles.
func (t *Trait[T]) ExpressedValue() T {
	if t.Expression == nil {
		var zero T
		return zero
	}
	return t.Expression.Express(t.Alleles)
}

// Clone copies the alleles; expression and mutator are shared.
func (t *Trait[T]) Clone() *Trait[T] {
	return &Trait[T]{
		name:              t.name,
		Alleles:           slices.Clone(t.Alleles),
		Expression:        t.Expression,
		MutationIncrement: t.MutationIncrement,
		mutator:           t.mutator,
	}
}

func (t *Trait[T]) asTrait() *Trait[T] { return t }

func (t *Trait[T]) clone() Gene { return t.Clone() }

func (t *Trait[T]) mutate(rng *Rng, cfg MutationConfig) {
	if t.mutator == nil {
		return
	}
	t.mutator.Mutate(t, rng, cfg.Probability)
}

// recombine replaces the receiver's alleles, alternating between the two
// parents' pools from a randomly chosen starting parent.
func (t *Trait[T]) recombine(father Gene, rng *Rng) bool {
	src, ok := father.(traitOf[T])
	if !ok {
		return false
	}
	pools := [2][]T{slices.Clone(t.Alleles), src.asTrait().Alleles}

	parent := rng.IntN(2)
	for i := range t.Alleles {
		if pool := pools[parent]; len(pool) > 0 {
			t.Alleles[i] = pool[rng.IntN(len(pool))]
		}
		parent = 1 - parent
	}
	return true
}

func (t *Trait[T]) fingerprint(w io.Writer) {
	fmt.Fprintf(w, "%s=%v;", t.name, t.Alleles)
}

// StepMutator moves each selected allele up or down by the trait's increment
// with equal odds, clamped at zero.
type StepMutator struct{}

func (StepMutator) Mutate(t *Trait[float64], rng *Rng, rate float64) {
	for i := range t.Alleles {
		if !rng.Chance(rate) {
			continue
		}
		step := t.MutationIncrement
		if rng.Float64() < 0.5 {
			step = -step
		}
		t.Alleles[i] = max(0, t.Alleles[i]+step)
	}
}

// FlipMutator inverts each selected allele, but only on traits whose
// mutation flag is set.
type FlipMutator struct{}

func (FlipMutator) Mutate(t *Trait[bool], rng *Rng, rate float64) {
	if !t.MutationIncrement {
		return
	}
	for i := range t.Alleles {
		if rng.Chance(rate) {
			t.Alleles[i] = !t.Alleles[i]
		}
	}
}
