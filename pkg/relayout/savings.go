package relayout

import (
	"math/big"
	"strings"
)

// Profile describes the redundancy scheme of a pool.
//
// An erasure-coded pool with k data and m coding chunks stores (k+m)/k raw
// bytes per logical byte. A replicated pool of size n is {DataChunks: 1,
// CodingChunks: n-1}.
type Profile struct {
	DataChunks   int64 `mapstructure:"data_chunks" yaml:"data_chunks" validate:"gte=1"`
	CodingChunks int64 `mapstructure:"coding_chunks" yaml:"coding_chunks" validate:"gte=0"`
}

// Ratio returns the raw-storage overhead (k+m)/k as an exact rational.
// A profile without data chunks carries no redundancy information and
// counts as 1.
func (p Profile) Ratio() *big.Rat {
	if p.DataChunks < 1 {
		return big.NewRat(1, 1)
	}
	return big.NewRat(p.DataChunks+p.CodingChunks, p.DataChunks)
}

// Estimator converts a move between pools into a raw-storage delta.
type Estimator struct {
	// Default applies to pools missing from Pools
	Default Profile

	// Pools maps pool names to their redundancy profiles
	Pools map[string]Profile
}

// ProfileFor returns the profile of the named pool, or Default.
func (e *Estimator) ProfileFor(pool string) Profile {
	if p, ok := e.Lookup(pool); ok {
		return p
	}
	return e.Default
}

// Lookup returns the configured profile of the named pool. Names match
// case-insensitively, since configuration loaders fold map keys to lower
// case while CephFS pool names keep theirs; an exact match wins.
func (e *Estimator) Lookup(pool string) (Profile, bool) {
	if p, ok := e.Pools[pool]; ok {
		return p, true
	}
	for name, p := range e.Pools {
		if strings.EqualFold(name, pool) {
			return p, true
		}
	}
	return Profile{}, false
}

// Estimate returns size*oldRatio - size*newRatio in bytes, rounded to the
// nearest byte.
//
// The result is negative when the destination pool is less space-efficient;
// it is never clamped.
func (e *Estimator) Estimate(size int64, fromPool, toPool string) int64 {
	s := new(big.Rat).SetInt64(size)
	oldUsage := new(big.Rat).Mul(s, e.ProfileFor(fromPool).Ratio())
	newUsage := new(big.Rat).Mul(s, e.ProfileFor(toPool).Ratio())
	delta := new(big.Rat).Sub(oldUsage, newUsage)
	return roundRat(delta)
}

// roundRat rounds half away from zero.
func roundRat(r *big.Rat) int64 {
	num := new(big.Int).Set(r.Num())
	den := r.Denom()

	neg := num.Sign() < 0
	num.Abs(num)

	// (2*num + den) / (2*den)
	twice := new(big.Int).Lsh(num, 1)
	twice.Add(twice, den)
	q := new(big.Int).Quo(twice, new(big.Int).Lsh(den, 1))

	if neg {
		q.Neg(q)
	}
	return q.Int64()
}
