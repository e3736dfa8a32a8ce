package converter

import (
	"maps"
	"slices"
)

// AssetSet is an immutable set of asset identities. The zero value is empty.
type AssetSet struct {
	ids map[string]struct{}
}

// NewAssetSet builds a set from ids, skipping empty values.
func NewAssetSet(ids ...string) AssetSet {
	set := AssetSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			set.ids[id] = struct{}{}
		}
	}
	return set
}

// Union returns a new set holding the members of both sets.
func (s AssetSet) Union(other AssetSet) AssetSet {
	if len(other.ids) == 0 {
		return s
	}
	if len(s.ids) == 0 {
		return other
	}
	merged := AssetSet{ids: make(map[string]struct{}, len(s.ids)+len(other.ids))}
	maps.Copy(merged.ids, s.ids)
	maps.Copy(merged.ids, other.ids)
	return merged
}

func (s AssetSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s AssetSet) Len() int { return len(s.ids) }

// Sorted returns the members in lexical order.
func (s AssetSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s.ids))
}
