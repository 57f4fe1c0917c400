package keylist

import "sort"

// Record is the complete persisted state of one identity: each owner key maps
// to its ordered list of values. A Record is a value type; the transforms
// below never modify their receiver.
type Record map[string][]string

// Len returns the number of owners.
func (r Record) Len() int {
	return len(r)
}

// List returns a copy of owner's values, or an empty slice.
func (r Record) List(owner string) []string {
	values := r[owner]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Has reports whether owner is present.
func (r Record) Has(owner string) bool {
	_, ok := r[owner]
	return ok
}

// Owners returns the owner keys in sorted order.
func (r Record) Owners() []string {
	owners := make([]string, 0, len(r))
	for owner := range r {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for owner, values := range r {
		cp := make([]string, len(values))
		copy(cp, values)
		out[owner] = cp
	}
	return out
}

// Compact returns a copy without owners whose list is empty.
func (r Record) Compact() Record {
	out := r.Clone()
	for owner, values := range out {
		if len(values) == 0 {
			delete(out, owner)
		}
	}
	return out
}

// ContainsAny reports whether owner's list holds at least one of values.
func (r Record) ContainsAny(owner string, values []string) bool {
	current, ok := r[owner]
	if !ok || len(values) == 0 {
		return false
	}
	for _, v := range values {
		if indexOf(current, v) >= 0 {
			return true
		}
	}
	return false
}

// WithList replaces owner's list with values as given. An empty values
// removes the owner.
func (r Record) WithList(owner string, values []string) Record {
	out := r.Clone()
	if len(values) == 0 {
		delete(out, owner)
		return out
	}
	cp := make([]string, len(values))
	copy(cp, values)
	out[owner] = cp
	return out
}

// WithValue appends value to owner's list unless it is already present.
// The boolean is false when nothing changed.
func (r Record) WithValue(owner, value string) (Record, bool) {
	if indexOf(r[owner], value) >= 0 {
		return r, false
	}
	out := r.Clone()
	out[owner] = append(out[owner], value)
	return out, true
}

// WithoutValue removes the first occurrence of value from owner's list and
// drops the owner when its list becomes empty. The boolean is false when
// nothing changed.
func (r Record) WithoutValue(owner, value string) (Record, bool) {
	i := indexOf(r[owner], value)
	if i < 0 {
		return r, false
	}
	out := r.Clone()
	values := out[owner]
	values = append(values[:i], values[i+1:]...)
	if len(values) == 0 {
		delete(out, owner)
	} else {
		out[owner] = values
	}
	return out, true
}

// WithoutOwner removes owner. The boolean is false when owner was absent.
func (r Record) WithoutOwner(owner string) (Record, bool) {
	if !r.Has(owner) {
		return r, false
	}
	out := r.Clone()
	delete(out, owner)
	return out, true
}

func indexOf(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}
