package genetics

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

var (
	// ErrClosedGenome is returned when adding a trait to a cloned genome.
	ErrClosedGenome = errors.New("genetics: genome is closed to new traits")
	// ErrDuplicateTrait is returned when a trait name is already present.
	ErrDuplicateTrait = errors.New("genetics: duplicate trait")
)

// MutationConfig holds the per-allele flip odds for one mutation pass.
type MutationConfig struct {
	// Probability applies to ordinary traits.
	Probability float64
	// DeleteriousRate applies to deleterious traits.
	DeleteriousRate float64
}

// Genome is an ordered set of named traits. A freshly constructed genome is
// open and accepts new traits; clones are closed.
type Genome struct {
	genes  []Gene
	byName map[string]int
	open   bool
	log    *zap.Logger
}

// Option configures a Genome.
type Option func(*Genome)

// WithLogger sets the logger used for trait lookup misses.
func WithLogger(log *zap.Logger) Option {
	return func(g *Genome) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGenome creates an empty, open genome.
func NewGenome(opts ...Option) *Genome {
	g := &Genome{
		byName: make(map[string]int),
		open:   true,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddTrait appends a trait.
func (g *Genome) AddTrait(t Gene) error {
	if !g.open {
		return fmt.Errorf("%w: %s", ErrClosedGenome, t.Name())
	}
	if _, ok := g.byName[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTrait, t.Name())
	}
	g.byName[t.Name()] = len(g.genes)
	g.genes = append(g.genes, t)
	return nil
}

// inherit appends a trait to a genome under construction by Reproduce.
func (g *Genome) inherit(t Gene) {
	if _, ok := g.byName[t.Name()]; ok {
		return
	}
	g.byName[t.Name()] = len(g.genes)
	g.genes = append(g.genes, t)
}

// IsOpen reports whether the genome still accepts traits.
func (g *Genome) IsOpen() bool {
	return g.open
}

// Len returns the number of traits.
func (g *Genome) Len() int {
	return len(g.genes)
}

// Clone deep-copies every trait. The clone is closed.
func (g *Genome) Clone() *Genome {
	c := &Genome{
		genes:  make([]Gene, len(g.genes)),
		byName: make(map[string]int, len(g.byName)),
		log:    g.log,
	}
	for i, gene := range g.genes {
		c.genes[i] = gene.clone()
		c.byName[gene.Name()] = i
	}
	return c
}

// Gene returns the trait named name.
func (g *Genome) Gene(name string) (Gene, bool) {
	i, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.genes[i], true
}

// Traits returns every trait in insertion order.
func (g *Genome) Traits() []Gene {
	out := make([]Gene, len(g.genes))
	copy(out, g.genes)
	return out
}

// DeleteriousTraits returns the deleterious traits in insertion order.
func (g *Genome) DeleteriousTraits() []*DeleteriousTrait {
	var out []*DeleteriousTrait
	for _, gene := range g.genes {
		if d, ok := gene.(*DeleteriousTrait); ok {
			out = append(out, d)
		}
	}
	return out
}

// Mutate runs one mutation pass over every trait.
func (g *Genome) Mutate(rng *Rng, cfg MutationConfig) {
	for _, gene := range g.genes {
		gene.mutate(rng, cfg)
	}
}

// Fingerprint hashes trait names and alleles in order. Genomes with equal
// genotypes share a fingerprint.
func (g *Genome) Fingerprint() uint64 {
	d := xxhash.New()
	for _, gene := range g.genes {
		gene.fingerprint(d)
	}
	return d.Sum64()
}

// GetTrait returns the trait named name as a *Trait[T]. A missing trait or one
// of another allele type is logged and yields nil.
func GetTrait[T any](g *Genome, name string) *Trait[T] {
	gene, ok := g.Gene(name)
	if !ok {
		g.log.Warn("trait not found", zap.String("trait", name))
		return nil
	}
	t, ok := gene.(traitOf[T])
	if !ok {
		var zero T
		g.log.Warn("trait has another allele type",
			zap.String("trait", name),
			zap.String("want", fmt.Sprintf("%T", zero)))
		return nil
	}
	return t.asTrait()
}

// Expressed returns the expressed value of the named trait, or fallback when
// it is missing.
func Expressed[T any](g *Genome, name string, fallback T) T {
	t := GetTrait[T](g, name)
	if t == nil {
		return fallback
	}
	return t.ExpressedValue()
}
