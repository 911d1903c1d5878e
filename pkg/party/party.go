// Package party defines the party-index type shared across the protocol
// packages. Parties are identified purely by their position in the group,
// not by any opaque token: role assignment (sender/receiver, Alice/Bob) is
// always decided by index ordering.
package party

import "sort"

// ID is a participant's index within a group of size N, in [0, N).
type ID uint32

// IDs is a set of participant indices, kept sorted and deduplicated by New.
type IDs []ID

// New returns a sorted, deduplicated IDs slice.
func New(ids ...ID) IDs {
	out := append(IDs(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:0]
	var last ID
	haveLast := false
	for _, id := range out {
		if haveLast && id == last {
			continue
		}
		dedup = append(dedup, id)
		last = id
		haveLast = true
	}
	return dedup
}

// Range returns the IDs 0, 1, ..., n-1.
func Range(n int) IDs {
	out := make(IDs, n)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

// Contains reports whether id is a member.
func (ids IDs) Contains(id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Without returns a copy of ids with id removed.
func (ids IDs) Without(id ID) IDs {
	out := make(IDs, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// IsBob reports whether self plays the Bob (receiver/higher-index) role
// against counterparty. Role in every pairwise sub-protocol is decided by
// index ordering: the higher index is Bob.
func IsBob(self, counterparty ID) bool {
	return self > counterparty
}

// Min and Max order a pair of IDs, used to build the canonical dyadic key
// for an unordered pair {i, j}.
func Min(a, b ID) ID {
	if a < b {
		return a
	}
	return b
}

func Max(a, b ID) ID {
	if a > b {
		return a
	}
	return b
}
