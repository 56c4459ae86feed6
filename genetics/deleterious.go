package genetics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotDiploid is returned when a deleterious trait is built with other than two alleles.
var ErrNotDiploid = errors.New("genetics: deleterious trait must have exactly 2 alleles")

// DeleteriousTrait is a dominant boolean trait that, once expressed and past
// its activation age, kills its carrier with a fixed per-second hazard.
type DeleteriousTrait struct {
	Trait[bool]

	ActivationAge      float64
	MortalityPerSecond float64
	StepsPerSecond     int
}

// NewDeleteriousTrait validates the allele count and derives nothing else up
// front; the per-step probability is computed from the configured step rate.
// An empty name defaults to "<activationAge>_<mortalityPerSecond>".
func NewDeleteriousTrait(name string, alleles []bool, activationAge, mortalityPerSecond float64, stepsPerSecond int) (*DeleteriousTrait, error) {
	if len(alleles) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotDiploid, len(alleles))
	}
	if stepsPerSecond <= 0 {
		return nil, fmt.Errorf("genetics: steps per second must be positive, got %d", stepsPerSecond)
	}
	if name == "" {
		name = strconv.FormatFloat(activationAge, 'g', -1, 64) + "_" +
			strconv.FormatFloat(mortalityPerSecond, 'g', -1, 64)
	}
	return &DeleteriousTrait{
		Trait: Trait[bool]{
			name:       name,
			Alleles:    alleles,
			Expression: Dominant(),
		},
		ActivationAge:      activationAge,
		MortalityPerSecond: mortalityPerSecond,
		StepsPerSecond:     stepsPerSecond,
	}, nil
}

// MortalityPerStep converts the per-second rate so that compounding it over
// StepsPerSecond steps reproduces MortalityPerSecond.
func (d *DeleteriousTrait) MortalityPerStep() float64 {
	return 1 - math.Pow(1-d.MortalityPerSecond, 1/float64(d.StepsPerSecond))
}

// CheckForDeath draws once against the per-step mortality if the trait is
// expressed and the carrier has reached the activation age.
func (d *DeleteriousTrait) CheckForDeath(age float64, rng *Rng) bool {
	if age < d.ActivationAge || !d.ExpressedValue() {
		return false
	}
	return rng.Float64() < d.MortalityPerStep()
}

// Clone copies the alleles and the mortality parameters.
func (d *DeleteriousTrait) Clone() *DeleteriousTrait {
	return &DeleteriousTrait{
		Trait:              *d.Trait.Clone(),
		ActivationAge:      d.ActivationAge,
		MortalityPerSecond: d.MortalityPerSecond,
		StepsPerSecond:     d.StepsPerSecond,
	}
}

func (d *DeleteriousTrait) clone() Gene { return d.Clone() }

// inheritAlone pairs one of the carrier's alleles with a wild-type allele
// from a parent that lacks the trait.
func (d *DeleteriousTrait) inheritAlone(rng *Rng) {
	d.Alleles = []bool{d.Alleles[rng.IntN(len(d.Alleles))], false}
}

// mutate flips alleles at the deleterious rate, independent of the
// genome-wide mutation probability.
func (d *DeleteriousTrait) mutate(rng *Rng, cfg MutationConfig) {
	for i := range d.Alleles {
		if rng.Chance(cfg.DeleteriousRate) {
			d.Alleles[i] = !d.Alleles[i]
		}
	}
}
