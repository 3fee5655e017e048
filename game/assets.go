// game/assets.go
package game

import (
	"fmt"
	"strconv"
)

// Draw pulls one item from pool that has not been used yet. Once the pool is
// exhausted it draws from the whole pool again, excluding only the most
// recently used item so consecutive draws differ whenever the pool allows it.
func Draw(rng Rand, pool, used []string) (string, error) {
	if len(pool) == 0 {
		return "", fmt.Errorf("empty asset pool")
	}

	usedSet := make(map[string]struct{}, len(used))
	for _, item := range used {
		usedSet[item] = struct{}{}
	}

	var unused []string
	for _, item := range pool {
		if _, ok := usedSet[item]; !ok {
			unused = append(unused, item)
		}
	}
	if len(unused) > 0 {
		return unused[rng.Intn(len(unused))], nil
	}

	// Pool exhausted: repeats are allowed now, but never repeat the item
	// drawn last unless the pool has only one item.
	candidates := pool
	if len(pool) > 1 && len(used) > 0 {
		last := used[len(used)-1]
		filtered := make([]string, 0, len(pool)-1)
		for _, item := range pool {
			if item != last {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}
	return candidates[rng.Intn(len(candidates))], nil
}

// DrawIndex is Draw over the index space [0, size). used holds decimal
// strings, matching how the session document stores used puzzle indices.
func DrawIndex(rng Rand, size int, used []string) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("empty asset pool")
	}

	usedSet := make(map[int]struct{}, len(used))
	for _, s := range used {
		if i, err := strconv.Atoi(s); err == nil {
			usedSet[i] = struct{}{}
		}
	}

	var unused []int
	for i := 0; i < size; i++ {
		if _, ok := usedSet[i]; !ok {
			unused = append(unused, i)
		}
	}
	if len(unused) > 0 {
		return unused[rng.Intn(len(unused))], nil
	}

	last := -1
	if len(used) > 0 {
		last, _ = strconv.Atoi(used[len(used)-1])
	}
	var candidates []int
	for i := 0; i < size; i++ {
		if i != last || size == 1 {
			candidates = append(candidates, i)
		}
	}
	return candidates[rng.Intn(len(candidates))], nil
}

// DrawSet pulls n distinct items at once, preferring unused ones. When fewer
// than n unused items remain the whole pool is reshuffled and drawn from, so
// a round always gets a full set.
func DrawSet(rng Rand, pool, used []string, n int) ([]string, error) {
	if len(pool) < n {
		return nil, fmt.Errorf("asset pool has %d items, need %d", len(pool), n)
	}

	usedSet := make(map[string]struct{}, len(used))
	for _, item := range used {
		usedSet[item] = struct{}{}
	}
	var unused []string
	for _, item := range pool {
		if _, ok := usedSet[item]; !ok {
			unused = append(unused, item)
		}
	}

	source := pool
	if len(unused) >= n {
		source = unused
	}
	return shuffled(rng, source)[:n], nil
}
