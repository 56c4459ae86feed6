package genetics

import "sort"

// Expression maps a trait's alleles to its phenotype. Implementations must be
// pure over the allele list; random strategies draw from their own source.
type Expression[T any] interface {
	Express(alleles []T) T
}

// ExpressionFunc adapts a function to Expression.
type ExpressionFunc[T any] func(alleles []T) T

func (f ExpressionFunc[T]) Express(alleles []T) T { return f(alleles) }

// HighestWins expresses the largest allele.
func HighestWins() Expression[float64] {
	return ExpressionFunc[float64](func(alleles []float64) float64 {
		if len(alleles) == 0 {
			return 0
		}
		best := alleles[0]
		for _, a := range alleles[1:] {
			best = max(best, a)
		}
		return best
	})
}

// LowestWins expresses the smallest allele.
func LowestWins() Expression[float64] {
	return ExpressionFunc[float64](func(alleles []float64) float64 {
		if len(alleles) == 0 {
			return 0
		}
		best := alleles[0]
		for _, a := range alleles[1:] {
			best = min(best, a)
		}
		return best
	})
}

// Mean expresses the arithmetic mean of the alleles.
func Mean() Expression[float64] {
	return ExpressionFunc[float64](func(alleles []float64) float64 {
		if len(alleles) == 0 {
			return 0
		}
		var sum float64
		for _, a := range alleles {
			sum += a
		}
		return sum / float64(len(alleles))
	})
}

// Dominant expresses true if any allele is true.
func Dominant() Expression[bool] {
	return ExpressionFunc[bool](func(alleles []bool) bool {
		for _, a := range alleles {
			if a {
				return true
			}
		}
		return false
	})
}

// Recessive expresses true only if every allele is true.
func Recessive() Expression[bool] {
	return ExpressionFunc[bool](func(alleles []bool) bool {
		if len(alleles) == 0 {
			return false
		}
		for _, a := range alleles {
			if !a {
				return false
			}
		}
		return true
	})
}

// RandomPick expresses a uniformly chosen allele on every evaluation.
func RandomPick[T any](rng *Rng) Expression[T] {
	return ExpressionFunc[T](func(alleles []T) T {
		if len(alleles) == 0 {
			var zero T
			return zero
		}
		return alleles[rng.IntN(len(alleles))]
	})
}

// ExpressionSet is a named collection of strategies. Trait definitions in
// settings refer to expressions by these names.
type ExpressionSet[T any] struct {
	byName map[string]Expression[T]
}

// NewExpressionSet creates an empty set.
func NewExpressionSet[T any]() *ExpressionSet[T] {
	return &ExpressionSet[T]{byName: make(map[string]Expression[T])}
}

// Register adds or replaces the strategy under name.
func (s *ExpressionSet[T]) Register(name string, e Expression[T]) {
	s.byName[name] = e
}

// Lookup returns the strategy registered under name.
func (s *ExpressionSet[T]) Lookup(name string) (Expression[T], bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Names lists the registered names in sorted order.
func (s *ExpressionSet[T]) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FloatExpressions returns the default numeric strategies:
// "max", "min", "mean" (also "average") and "random".
func FloatExpressions(rng *Rng) *ExpressionSet[float64] {
	s := NewExpressionSet[float64]()
	s.Register("max", HighestWins())
	s.Register("min", LowestWins())
	s.Register("mean", Mean())
	s.Register("average", Mean())
	s.Register("random", RandomPick[float64](rng))
	return s
}

// BoolExpressions returns the default boolean strategies:
// "dominant", "recessive" and "random".
func BoolExpressions(rng *Rng) *ExpressionSet[bool] {
	s := NewExpressionSet[bool]()
	s.Register("dominant", Dominant())
	s.Register("recessive", Recessive())
	s.Register("random", RandomPick[bool](rng))
	return s
}
