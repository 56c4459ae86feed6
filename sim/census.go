package sim

import (
	"github.com/plus3/ecosim/ecs"
)

// Census summarizes the population at the end of a step.
type Census struct {
	Step      int64   `json:"step"`
	Time      float64 `json:"time"`
	Creatures int     `json:"creatures"`
	Juveniles int     `json:"juveniles"`
	Trees     int     `json:"trees"`
	Saplings  int     `json:"saplings"`
	Fruit     int     `json:"fruit"`

	MeanSpeed     float64 `json:"mean_speed"`
	MeanAwareness float64 `json:"mean_awareness"`
	MeanEnergy    float64 `json:"mean_energy"`
	// Genotypes counts distinct genome fingerprints among living creatures.
	Genotypes int `json:"genotypes"`
}

// TakeCensus counts the living population in registry.
func TakeCensus(registry *ecs.EntityRegistry, settings Settings) Census {
	var c Census
	genotypes := make(map[uint64]struct{})

	for creature := range ecs.GetComponents[Creature](registry) {
		if !creature.Alive {
			continue
		}
		c.Creatures++
		if creature.Age < settings.Creatures.MaturationTime {
			c.Juveniles++
		}
		c.MeanSpeed += creature.MaxSpeed()
		c.MeanAwareness += creature.AwarenessRadius()
		c.MeanEnergy += creature.Energy
		genotypes[creature.Genome.Fingerprint()] = struct{}{}
	}
	if c.Creatures > 0 {
		n := float64(c.Creatures)
		c.MeanSpeed /= n
		c.MeanAwareness /= n
		c.MeanEnergy /= n
	}
	c.Genotypes = len(genotypes)

	for tree := range ecs.GetComponents[Tree](registry) {
		if !tree.Alive {
			continue
		}
		c.Trees++
		if !tree.IsMature(settings.Trees.MaturationTime) {
			c.Saplings++
		}
		if tree.HasFruit {
			c.Fruit++
		}
	}
	return c
}

// CensusSystem records a census after every step and keeps one sample every
// SampleEvery steps. Register it last.
type CensusSystem struct {
	ecs.SystemBase[*World]

	SampleEvery int64

	step    int64
	elapsed float64
	latest  Census
	history []Census
}

func NewCensusSystem(sampleEvery int64) *CensusSystem {
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	return &CensusSystem{SampleEvery: sampleEvery}
}

func (s *CensusSystem) Update(dt float64) error {
	if err := s.Ready(); err != nil {
		return err
	}
	s.step++
	s.elapsed += dt

	s.latest = TakeCensus(s.Registry, s.World.Settings)
	s.latest.Step = s.step
	s.latest.Time = s.elapsed
	if s.step%s.SampleEvery == 0 {
		s.history = append(s.history, s.latest)
	}

	s.EmitStepped()
	return nil
}

// Latest returns the census of the last completed step.
func (s *CensusSystem) Latest() Census {
	return s.latest
}

// History returns the sampled censuses in step order.
func (s *CensusSystem) History() []Census {
	out := make([]Census, len(s.history))
	copy(out, s.history)
	return out
}
