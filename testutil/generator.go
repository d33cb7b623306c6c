// Package testutil provides test utilities for config store testing.
package testutil

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"

	"swarmclone-desktop/internal/config"
)

// samples mixes ASCII, CJK and characters that encoders like to escape.
var samples = []string{
	"default", "dark", "zh_CN", "蜂群", "Live2D <model>", "a&b", `quote "x"`, "",
}

// ValueGenerator fills a store with random JSON values. Values are produced
// in the shape the store's decoder returns (json.Number, []any,
// map[string]any), so they compare equal to what a cold load reads back.
type ValueGenerator struct {
	store config.Store
	rng   *rand.Rand
	keys  []string
}

// NewValueGenerator creates a generator writing to s. The same seed always
// produces the same documents.
func NewValueGenerator(s config.Store, seed int64) *ValueGenerator {
	return &ValueGenerator{
		store: s,
		rng:   rand.New(rand.NewSource(seed)),
		keys:  make([]string, 0),
	}
}

// Keys returns all keys written by this generator.
func (g *ValueGenerator) Keys() []string {
	return g.keys
}

// Cleanup unsets all keys written by this generator.
func (g *ValueGenerator) Cleanup() error {
	for i := len(g.keys) - 1; i >= 0; i-- {
		if err := g.store.Unset(g.keys[i]); err != nil {
			return fmt.Errorf("cleanup key %s: %w", g.keys[i], err)
		}
	}
	g.keys = g.keys[:0]
	return nil
}

// GenerateFlat writes n keys holding scalar values and returns them.
func (g *ValueGenerator) GenerateFlat(n int) (map[string]any, error) {
	out := make(map[string]any, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("gen.flat.%d", len(g.keys))
		v := g.scalar()
		if err := g.put(key, v); err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// GenerateNested writes one key holding an object nested depth levels deep
// with breadth entries per level, and returns it.
func (g *ValueGenerator) GenerateNested(depth, breadth int) (map[string]any, error) {
	key := fmt.Sprintf("gen.nested.%d", len(g.keys))
	v := g.nested(depth, breadth)
	if err := g.put(key, v); err != nil {
		return nil, err
	}
	return map[string]any{key: v}, nil
}

func (g *ValueGenerator) put(key string, v any) error {
	if err := g.store.Put(key, v); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	g.keys = append(g.keys, key)
	return nil
}

func (g *ValueGenerator) nested(depth, breadth int) any {
	if depth <= 0 {
		return g.scalar()
	}
	if g.rng.Intn(2) == 0 {
		list := make([]any, breadth)
		for i := range list {
			list[i] = g.nested(depth-1, breadth)
		}
		return list
	}
	obj := make(map[string]any, breadth)
	for i := 0; i < breadth; i++ {
		obj[fmt.Sprintf("k%d", i)] = g.nested(depth-1, breadth)
	}
	return obj
}

func (g *ValueGenerator) scalar() any {
	switch g.rng.Intn(6) {
	case 0:
		return samples[g.rng.Intn(len(samples))]
	case 1:
		return json.Number(strconv.Itoa(g.rng.Intn(4000) - 1000))
	case 2:
		return json.Number(strconv.FormatFloat(g.rng.Float64()*100, 'f', -1, 64))
	case 3:
		// Past 2^53, where a float64 would round.
		return json.Number(strconv.FormatInt(1<<53+g.rng.Int63n(1<<20), 10))
	case 4:
		return g.rng.Intn(2) == 0
	default:
		return nil
	}
}
