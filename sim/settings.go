package sim

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/plus3/ecosim/genetics"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings is returned by Validate and the loaders.
var ErrInvalidSettings = errors.New("sim: invalid settings")

// Trait names the creature behavior reads.
const (
	TraitMaxSpeed               = "MaxSpeed"
	TraitAwarenessRadius        = "AwarenessRadius"
	TraitMaxAge                 = "MaxAge"
	TraitMaxReproductionAge     = "MaxReproductionAge"
	TraitAntagonisticPleiotropy = "Antagonistic Pleiotropy Speed"
)

// Trait kinds accepted in TraitSpec.Kind.
const (
	KindFloat       = "float"
	KindBool        = "bool"
	KindDeleterious = "deleterious"
)

// Settings is the full parameter set of one simulation run.
type Settings struct {
	Seed           uint64           `yaml:"seed"`
	StepsPerSecond int              `yaml:"steps_per_second"`
	World          WorldSettings    `yaml:"world"`
	Creatures      CreatureSettings `yaml:"creatures"`
	Trees          TreeSettings     `yaml:"trees"`
	// Genome declares the traits every initial creature carries.
	Genome []TraitSpec `yaml:"genome"`
}

// WorldSettings bounds the XZ plane.
type WorldSettings struct {
	MinX     float64 `yaml:"min_x"`
	MinZ     float64 `yaml:"min_z"`
	MaxX     float64 `yaml:"max_x"`
	MaxZ     float64 `yaml:"max_z"`
	CellSize float64 `yaml:"cell_size"`
}

type CreatureSettings struct {
	InitialCount int `yaml:"initial_count"`

	StepMaxLength         float64 `yaml:"step_max_length"`
	MaxAccelerationFactor float64 `yaml:"max_acceleration_factor"`
	EatDistance           float64 `yaml:"eat_distance"`
	MateDistance          float64 `yaml:"mate_distance"`

	EatDuration          float64 `yaml:"eat_duration"`
	MaturationTime       float64 `yaml:"maturation_time"`
	ReproductionDuration float64 `yaml:"reproduction_duration"`

	InitialEnergy               float64 `yaml:"initial_energy"`
	BaseEnergySpend             float64 `yaml:"base_energy_spend"`
	EnergySpendAdjustment       float64 `yaml:"energy_spend_adjustment"`
	MinEnergyGainFromFood       float64 `yaml:"min_energy_gain_from_food"`
	MaxEnergyGainFromFood       float64 `yaml:"max_energy_gain_from_food"`
	DigestionPerStep            float64 `yaml:"digestion_per_step"`
	ReproductionEnergyThreshold float64 `yaml:"reproduction_energy_threshold"`
	ReproductionEnergyCost      float64 `yaml:"reproduction_energy_cost"`
	HungerThreshold             float64 `yaml:"hunger_threshold"`

	ReferenceSpeed           float64 `yaml:"reference_speed"`
	ReferenceAwarenessRadius float64 `yaml:"reference_awareness_radius"`

	MutationProbability     float64 `yaml:"mutation_probability"`
	DeleteriousMutationRate float64 `yaml:"deleterious_mutation_rate"`
	PleiotropyDeathRate     float64 `yaml:"pleiotropy_death_rate"`

	VelocityDamping float64 `yaml:"velocity_damping"`
}

type TreeSettings struct {
	InitialCount int `yaml:"initial_count"`

	MinSpawnRadius    float64 `yaml:"min_spawn_radius"`
	MaxSpawnRadius    float64 `yaml:"max_spawn_radius"`
	CompetitionRadius float64 `yaml:"competition_radius"`
	MinimumDistance   float64 `yaml:"minimum_distance"`

	MaturationTime  float64 `yaml:"maturation_time"`
	SpawnInterval   float64 `yaml:"spawn_interval"`
	FruitGrowthTime float64 `yaml:"fruit_growth_time"`

	// Death chances are per step.
	SaplingDeathBase        float64 `yaml:"sapling_death_base"`
	SaplingDeathPerNeighbor float64 `yaml:"sapling_death_per_neighbor"`
	MatureDeathBase         float64 `yaml:"mature_death_base"`
	MatureDeathPerNeighbor  float64 `yaml:"mature_death_per_neighbor"`
}

// TraitSpec declares one initial trait. Expression names a strategy from
// genetics.FloatExpressions or genetics.BoolExpressions; deleterious traits
// are always dominant.
type TraitSpec struct {
	Name       string    `yaml:"name"`
	Kind       string    `yaml:"kind"`
	Expression string    `yaml:"expression,omitempty"`
	Floats     []float64 `yaml:"floats,omitempty"`
	Bools      []bool    `yaml:"bools,omitempty"`
	Increment  float64   `yaml:"increment,omitempty"`
	Mutable    bool      `yaml:"mutable,omitempty"`

	ActivationAge      float64 `yaml:"activation_age,omitempty"`
	MortalityPerSecond float64 `yaml:"mortality_per_second,omitempty"`
}

// DefaultSettings returns the stock tree and creature ecosystem on a 50x50 plane.
func DefaultSettings() Settings {
	return Settings{
		Seed:           1,
		StepsPerSecond: 60,
		World: WorldSettings{
			MinX: 0, MinZ: 0, MaxX: 50, MaxZ: 50,
			CellSize: 4,
		},
		Creatures: CreatureSettings{
			InitialCount:                100,
			StepMaxLength:               10,
			MaxAccelerationFactor:       0.1,
			EatDistance:                 2,
			MateDistance:                2,
			EatDuration:                 1.5,
			MaturationTime:              2,
			ReproductionDuration:        1,
			InitialEnergy:               1,
			BaseEnergySpend:             0.1,
			EnergySpendAdjustment:       0.2,
			MinEnergyGainFromFood:       0.5,
			MaxEnergyGainFromFood:       1.5,
			DigestionPerStep:            0.05,
			ReproductionEnergyThreshold: 2,
			ReproductionEnergyCost:      1,
			HungerThreshold:             4,
			ReferenceSpeed:              5,
			ReferenceAwarenessRadius:    5,
			MutationProbability:         0.1,
			DeleteriousMutationRate:     0,
			PleiotropyDeathRate:         0.03,
			VelocityDamping:             0.99,
		},
		Trees: TreeSettings{
			InitialCount:            30,
			MinSpawnRadius:          2,
			MaxSpawnRadius:          8,
			CompetitionRadius:       6,
			MinimumDistance:         2,
			MaturationTime:          20,
			SpawnInterval:           3,
			FruitGrowthTime:         4,
			SaplingDeathBase:        0.0001,
			SaplingDeathPerNeighbor: 0.001,
			MatureDeathBase:         0.0001,
			MatureDeathPerNeighbor:  0.0002,
		},
		Genome: []TraitSpec{
			{Name: TraitMaxSpeed, Kind: KindFloat, Expression: "mean", Floats: []float64{5, 5}, Increment: 1},
			{Name: TraitAwarenessRadius, Kind: KindFloat, Expression: "mean", Floats: []float64{5, 5}, Increment: 1},
			{Name: TraitMaxAge, Kind: KindFloat, Expression: "mean", Floats: []float64{20, 20}, Increment: 1},
		},
	}
}

// Dt is the fixed step length in simulated seconds.
func (s Settings) Dt() float64 {
	return 1 / float64(s.StepsPerSecond)
}

// MutationConfig returns the creature mutation parameters.
func (s Settings) MutationConfig() genetics.MutationConfig {
	return genetics.MutationConfig{
		Probability:     s.Creatures.MutationProbability,
		DeleteriousRate: s.Creatures.DeleteriousMutationRate,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidSettings}, args...)...)
}

func probability(name string, p float64) error {
	if p < 0 || p > 1 {
		return invalid("%s must be within [0, 1], got %v", name, p)
	}
	return nil
}

// Validate checks ranges and trait declarations.
func (s Settings) Validate() error {
	if s.StepsPerSecond <= 0 {
		return invalid("steps_per_second must be positive, got %d", s.StepsPerSecond)
	}
	if s.World.MaxX <= s.World.MinX || s.World.MaxZ <= s.World.MinZ {
		return invalid("world bounds are empty")
	}
	if s.Creatures.InitialCount < 0 || s.Trees.InitialCount < 0 {
		return invalid("initial counts must not be negative")
	}
	if s.Trees.MinSpawnRadius > s.Trees.MaxSpawnRadius {
		return invalid("trees.min_spawn_radius exceeds trees.max_spawn_radius")
	}
	if s.Creatures.MinEnergyGainFromFood > s.Creatures.MaxEnergyGainFromFood {
		return invalid("creatures.min_energy_gain_from_food exceeds creatures.max_energy_gain_from_food")
	}
	if s.Creatures.ReferenceSpeed <= 0 || s.Creatures.ReferenceAwarenessRadius <= 0 {
		return invalid("creature reference values must be positive")
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"creatures.mutation_probability", s.Creatures.MutationProbability},
		{"creatures.deleterious_mutation_rate", s.Creatures.DeleteriousMutationRate},
		{"creatures.pleiotropy_death_rate", s.Creatures.PleiotropyDeathRate},
		{"trees.sapling_death_base", s.Trees.SaplingDeathBase},
		{"trees.mature_death_base", s.Trees.MatureDeathBase},
	} {
		if err := probability(p.name, p.value); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(s.Genome))
	floats := genetics.FloatExpressions(nil)
	bools := genetics.BoolExpressions(nil)
	for i, spec := range s.Genome {
		if spec.Name == "" && spec.Kind != KindDeleterious {
			return invalid("genome[%d] has no name", i)
		}
		if seen[spec.Name] && spec.Name != "" {
			return invalid("genome[%d] repeats trait %q", i, spec.Name)
		}
		seen[spec.Name] = true

		switch spec.Kind {
		case KindFloat:
			if len(spec.Floats) == 0 {
				return invalid("trait %q has no float alleles", spec.Name)
			}
			if _, ok := floats.Lookup(spec.Expression); !ok {
				return invalid("trait %q: unknown expression %q (have %v)", spec.Name, spec.Expression, floats.Names())
			}
		case KindBool:
			if len(spec.Bools) == 0 {
				return invalid("trait %q has no bool alleles", spec.Name)
			}
			if _, ok := bools.Lookup(spec.Expression); !ok {
				return invalid("trait %q: unknown expression %q (have %v)", spec.Name, spec.Expression, bools.Names())
			}
		case KindDeleterious:
			if len(spec.Bools) != 2 {
				return invalid("deleterious trait %q needs exactly 2 alleles", spec.Name)
			}
			if err := probability("mortality_per_second of "+spec.Name, spec.MortalityPerSecond); err != nil {
				return err
			}
		default:
			return invalid("trait %q: unknown kind %q", spec.Name, spec.Kind)
		}
	}
	return nil
}

// BuildGenome instantiates the declared traits into an open genome.
// Random expressions draw from rng.
func (s Settings) BuildGenome(rng *genetics.Rng, logger *zap.Logger) (*genetics.Genome, error) {
	floats := genetics.FloatExpressions(rng)
	bools := genetics.BoolExpressions(rng)

	g := genetics.NewGenome(genetics.WithLogger(logger))
	for _, spec := range s.Genome {
		var gene genetics.Gene
		switch spec.Kind {
		case KindFloat:
			e, ok := floats.Lookup(spec.Expression)
			if !ok {
				return nil, invalid("trait %q: unknown expression %q", spec.Name, spec.Expression)
			}
			gene = genetics.NewFloatTrait(spec.Name, append([]float64(nil), spec.Floats...), e, spec.Increment)
		case KindBool:
			e, ok := bools.Lookup(spec.Expression)
			if !ok {
				return nil, invalid("trait %q: unknown expression %q", spec.Name, spec.Expression)
			}
			gene = genetics.NewBoolTrait(spec.Name, append([]bool(nil), spec.Bools...), e, spec.Mutable)
		case KindDeleterious:
			d, err := genetics.NewDeleteriousTrait(spec.Name, append([]bool(nil), spec.Bools...),
				spec.ActivationAge, spec.MortalityPerSecond, s.StepsPerSecond)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
			}
			gene = d
		default:
			return nil, invalid("trait %q: unknown kind %q", spec.Name, spec.Kind)
		}
		if err := g.AddTrait(gene); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
	}
	return g, nil
}

// LoadSettings decodes YAML over DefaultSettings and validates the result.
// An empty document yields the defaults.
func LoadSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("%w: decode: %w", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettingsFile reads settings from a YAML file.
func LoadSettingsFile(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()
	return LoadSettings(f)
}

// Save writes the settings as YAML.
func (s Settings) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
