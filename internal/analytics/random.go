package analytics

import (
	"math/rand/v2"
	"slices"

	"github.com/ashureev/pick27/internal/domain"
)

// NewRand returns a PCG-backed source. A zero seed draws one at random.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomPick draws PickSize distinct Numbers uniformly.
func RandomPick(rng *rand.Rand) domain.PickSet {
	perm := rng.Perm(domain.MaxNumber)
	out := make(domain.PickSet, domain.PickSize)
	for i := range out {
		out[i] = domain.Number(perm[i] + domain.MinNumber)
	}
	slices.Sort(out)
	return out
}
