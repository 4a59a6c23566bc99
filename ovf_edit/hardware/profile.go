//  Copyright 2024 the ovf-edit-tools Authors. All Rights Reserved.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package hardware

import (
	"sort"
	"strings"
)

// Profile names one hardware configuration variant of the VM. The zero
// value is the default profile: values bound to it apply unless a named
// profile overrides them.
type Profile string

// DefaultProfile is the implicit profile covering values not qualified by
// any named configuration.
const DefaultProfile Profile = ""

// IsDefault reports whether p is the default profile.
func (p Profile) IsDefault() bool { return p == DefaultProfile }

// ProfileSet is a set of profiles attached to one property value.
type ProfileSet map[Profile]struct{}

// NewProfileSet builds a set from the given profiles.
func NewProfileSet(profiles ...Profile) ProfileSet {
	s := make(ProfileSet, len(profiles))
	for _, p := range profiles {
		s[p] = struct{}{}
	}
	return s
}

// ProfileSetFromConfiguration parses the space-separated ovf:configuration
// attribute value; an empty attribute denotes the default profile.
func ProfileSetFromConfiguration(configuration string) ProfileSet {
	fields := strings.Fields(configuration)
	if len(fields) == 0 {
		return NewProfileSet(DefaultProfile)
	}
	s := make(ProfileSet, len(fields))
	for _, f := range fields {
		s[Profile(f)] = struct{}{}
	}
	return s
}

// ToConfiguration renders the set as the ovf:configuration attribute value.
// Sets covering the default profile render as "" (unqualified element).
func (s ProfileSet) ToConfiguration() string {
	if s.Has(DefaultProfile) {
		return ""
	}
	names := make([]string, 0, len(s))
	for p := range s {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// Has reports membership.
func (s ProfileSet) Has(p Profile) bool {
	_, ok := s[p]
	return ok
}

// Add inserts p and returns the set.
func (s ProfileSet) Add(p Profile) ProfileSet {
	s[p] = struct{}{}
	return s
}

// Remove deletes p.
func (s ProfileSet) Remove(p Profile) {
	delete(s, p)
}

// Empty reports whether the set has no members.
func (s ProfileSet) Empty() bool { return len(s) == 0 }

// Clone returns an independent copy.
func (s ProfileSet) Clone() ProfileSet {
	c := make(ProfileSet, len(s))
	for p := range s {
		c[p] = struct{}{}
	}
	return c
}

// Equal reports set equality.
func (s ProfileSet) Equal(o ProfileSet) bool {
	if len(s) != len(o) {
		return false
	}
	for p := range s {
		if !o.Has(p) {
			return false
		}
	}
	return true
}

// IsSupersetOf reports whether every member of o is in s.
func (s ProfileSet) IsSupersetOf(o ProfileSet) bool {
	for p := range o {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Overlaps reports whether the sets share any member.
func (s ProfileSet) Overlaps(o ProfileSet) bool {
	for p := range o {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Intersect returns the set of profiles present in both s and o.
func (s ProfileSet) Intersect(o ProfileSet) ProfileSet {
	c := NewProfileSet()
	for p := range s {
		if o.Has(p) {
			c.Add(p)
		}
	}
	return c
}

// Subtract returns s minus the members of o.
func (s ProfileSet) Subtract(o ProfileSet) ProfileSet {
	c := NewProfileSet()
	for p := range s {
		if !o.Has(p) {
			c.Add(p)
		}
	}
	return c
}

// Union returns the set of profiles present in either s or o.
func (s ProfileSet) Union(o ProfileSet) ProfileSet {
	c := s.Clone()
	for p := range o {
		c.Add(p)
	}
	return c
}

// normalize applies the default-dominance rule: a set containing the
// default profile alongside named profiles collapses to the default
// singleton, since default coverage already spans the named members.
func (s ProfileSet) normalize() ProfileSet {
	if s.Has(DefaultProfile) && len(s) > 1 {
		return NewProfileSet(DefaultProfile)
	}
	return s
}

// Sorted returns the members in a stable order, default profile first.
func (s ProfileSet) Sorted() []Profile {
	members := make([]Profile, 0, len(s))
	for p := range s {
		members = append(members, p)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// String renders the set for error messages.
func (s ProfileSet) String() string {
	parts := make([]string, 0, len(s))
	for _, p := range s.Sorted() {
		if p.IsDefault() {
			parts = append(parts, "(default)")
		} else {
			parts = append(parts, string(p))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
