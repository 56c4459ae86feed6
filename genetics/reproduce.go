package genetics

import "go.uber.org/zap"

// Reproduce builds a child genome from two parents. Every trait of a is
// recombined with b's trait of the same name: alleles alternate between the
// parents' pools, starting from a random parent. A trait b lacks, or carries
// with another allele type, keeps a's alleles.
//
// Deleterious traits are inherited from either parent. When only one parent
// carries one, the child gets one of its alleles paired with a wild-type
// (false) allele. The child then gets one mutation pass.
func Reproduce(a, b *Genome, rng *Rng, cfg MutationConfig) *Genome {
	child := a.Clone()
	for _, gene := range child.genes {
		father, ok := b.Gene(gene.Name())
		if !ok {
			if d, ok := gene.(*DeleteriousTrait); ok {
				d.inheritAlone(rng)
				continue
			}
			child.log.Warn("father lacks trait, inheriting from mother only",
				zap.String("trait", gene.Name()))
			continue
		}
		if !gene.recombine(father, rng) {
			child.log.Warn("father trait has another allele type, inheriting from mother only",
				zap.String("trait", gene.Name()))
		}
	}

	for _, d := range b.DeleteriousTraits() {
		if _, ok := child.Gene(d.Name()); ok {
			continue
		}
		inherited := d.Clone()
		inherited.inheritAlone(rng)
		child.inherit(inherited)
	}

	child.Mutate(rng, cfg)
	return child
}
