// Package dedup removes repeated entities by identity key.
package dedup

// By returns the first occurrence of every key in input order. Items whose key
// satisfies exclude are dropped; a nil exclude keeps everything. The input is not modified.
func By[T any, K comparable](items []T, key func(T) K, exclude func(K) bool) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if exclude != nil && exclude(k) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Set returns a membership predicate over keys, suitable as an exclude function.
func Set[K comparable](keys []K) func(K) bool {
	m := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return func(k K) bool {
		_, ok := m[k]
		return ok
	}
}
