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
	"fmt"
	"sort"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
)

// listSeparator joins repeated same-named children (Connection,
// HostResource) into one stored value; emission splits it back out.
const listSeparator = "\n"

// Item is the merged, profile-aware view of all hardware elements sharing
// one InstanceID. Each property slot maps every observed value string to
// the set of profiles that value is bound under; the sets for a slot are
// pairwise disjoint.
type Item struct {
	hw  *Hardware
	tag string

	values map[PropertyKey]map[string]ProfileSet

	// opaqueChildren retains the original token stream of children outside
	// the known schema, addressed by serialized form.
	opaqueChildren map[string]ovf.Child

	modified bool
}

func newItem(hw *Hardware, tag string) *Item {
	return &Item{
		hw:             hw,
		tag:            tag,
		values:         make(map[PropertyKey]map[string]ProfileSet),
		opaqueChildren: make(map[string]ovf.Child),
	}
}

// Modified reports whether the item changed since it was last emitted.
func (i *Item) Modified() bool { return i.modified }

// InstanceID returns the item's instance identifier.
func (i *Item) InstanceID() string {
	v, _ := i.singleValue(KeyInstanceID)
	return v
}

// ResourceTypeNumber returns the numeric CIM resource type, "" if unset.
func (i *Item) ResourceTypeNumber() string {
	v, _ := i.singleValue(KeyResourceType)
	return v
}

// singleValue returns the sole value of a slot; ok is false when the slot
// is absent or holds more than one value.
func (i *Item) singleValue(key PropertyKey) (string, bool) {
	vals := i.values[key]
	if len(vals) != 1 {
		return "", false
	}
	for v := range vals {
		return v, true
	}
	return "", false
}

// ingest merges one parsed hardware element into the item. Conflicting
// bindings for the same profile indicate a malformed descriptor.
func (i *Item) ingest(el *ovf.Item) error {
	profiles := ProfileSetFromConfiguration(el.Configuration)

	for _, a := range el.Attrs {
		if err := i.SetProperty(AttributeKey(a.Name), a.Value, profiles.Clone(), false); err != nil {
			return err
		}
	}

	// Repeated same-named children collapse into one list value so the
	// binding stays single-keyed.
	texts := make(map[string][]string)
	var order []string
	for _, c := range el.Children {
		if c.IsForeign() {
			form := c.SerializedForm()
			i.opaqueChildren[form] = c
			if err := i.SetProperty(OpaqueKey(form), form, profiles.Clone(), false); err != nil {
				return err
			}
			continue
		}
		if _, seen := texts[c.Name]; !seen {
			order = append(order, c.Name)
		}
		texts[c.Name] = append(texts[c.Name], c.Value)
		for _, a := range c.Attrs {
			if err := i.SetProperty(ChildAttributeKey(c.Name, a.Name), a.Value, profiles.Clone(), false); err != nil {
				return err
			}
		}
	}
	for _, name := range order {
		value := strings.Join(texts[name], listSeparator)
		if err := i.SetProperty(ChildKey(name), value, profiles.Clone(), false); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a slot under the queried profiles without placeholder
// substitution. A nil or empty query means the default profile.
func (i *Item) lookup(key PropertyKey, profiles ProfileSet) (string, bool) {
	vals := i.values[key]
	if len(vals) == 0 {
		return "", false
	}
	query := profiles
	if query.Empty() {
		query = NewProfileSet(DefaultProfile)
	}

	for _, v := range sortedValues(vals) {
		if vals[v].IsSupersetOf(query) {
			return v, true
		}
	}
	// Default coverage applies only when no other binding claims any of
	// the queried profiles.
	for _, v := range sortedValues(vals) {
		if !vals[v].Has(DefaultProfile) {
			continue
		}
		covered := true
		for v2, ps2 := range vals {
			if v2 != v && ps2.Overlaps(query) {
				covered = false
				break
			}
		}
		if covered {
			return v, true
		}
	}
	return "", false
}

// GetValue resolves a slot under the queried profiles with placeholder
// substitution applied. It returns "" when the slot is unset or the query
// spans profiles bound to diverging values.
func (i *Item) GetValue(key PropertyKey, profiles ProfileSet) string {
	v, ok := i.lookup(key, profiles)
	if !ok {
		return ""
	}
	return i.substitute(v, profiles)
}

// substitute expands placeholder tokens with the live value of the slot
// they reference. Expansion is a single pass; placeholder values must not
// themselves contain placeholders.
func (i *Item) substitute(s string, profiles ProfileSet) string {
	if !strings.Contains(s, "{") {
		return s
	}
	expand := func(token string, key PropertyKey) {
		if !strings.Contains(s, token) {
			return
		}
		v, _ := i.lookup(key, profiles)
		s = strings.ReplaceAll(s, token, v)
	}
	expand(PlaceholderVirtualQuantity, KeyVirtualQuantity)
	expand(PlaceholderResourceSubType, KeyResourceSubType)
	expand(PlaceholderElementName, KeyElementName)
	expand(PlaceholderConnection, KeyConnection)
	return s
}

// SetProperty binds value to the slot under the given profiles. An empty
// profile set means the slot's current coverage, or the default profile
// for a fresh slot. Existing bindings overlapping the target profiles are
// re-partitioned when overwrite is true and rejected otherwise.
func (i *Item) SetProperty(key PropertyKey, value string, profiles ProfileSet, overwrite bool) error {
	if profiles.Empty() {
		profiles = i.currentCoverage(key)
	} else {
		profiles = profiles.Clone().normalize()
	}
	if err := i.checkDeclared(profiles); err != nil {
		return err
	}

	vals := i.values[key]
	if vals == nil {
		vals = make(map[string]ProfileSet)
		i.values[key] = vals
	}

	if !overwrite {
		for v, ps := range vals {
			if v != value && ps.Overlaps(profiles) {
				return errs.Internalf("conflicting values for %s under profiles %s: %q vs %q",
					key, ps.Intersect(profiles), v, value)
			}
		}
	}

	if key == KeyInstanceID || key == KeyResourceType {
		for v := range vals {
			if v != value {
				return errs.Internalf("%s cannot vary across profiles: %q vs %q", key, v, value)
			}
		}
	}

	// Carve the target profiles out of every other binding.
	for v, ps := range vals {
		if v == value {
			continue
		}
		remainder := ps.Subtract(profiles)
		if profiles.Has(DefaultProfile) {
			// The default dominates any purely-named remainder.
			remainder = NewProfileSet()
		}
		if remainder.Empty() {
			delete(vals, v)
		} else {
			vals[v] = remainder
		}
	}

	merged := profiles
	if existing, ok := vals[value]; ok {
		merged = existing.Union(profiles)
	}
	vals[value] = merged.normalize()
	i.modified = true
	return nil
}

// currentCoverage is the union of all profile sets bound to a slot, or
// the default singleton for a fresh slot.
func (i *Item) currentCoverage(key PropertyKey) ProfileSet {
	vals := i.values[key]
	if len(vals) == 0 {
		return NewProfileSet(DefaultProfile)
	}
	union := NewProfileSet()
	for _, ps := range vals {
		union = union.Union(ps)
	}
	return union.normalize()
}

func (i *Item) checkDeclared(profiles ProfileSet) error {
	for p := range profiles {
		if p.IsDefault() {
			continue
		}
		if i.hw != nil && !i.hw.HasProfileDeclared(p) {
			return errs.Internalf("profile %q is not declared in the deployment options", p)
		}
	}
	return nil
}

// hasProfile reports whether the item exists under p, either explicitly
// or through default coverage of its identity slot.
func (i *Item) hasProfile(p Profile) bool {
	for _, ps := range i.values[KeyInstanceID] {
		if ps.Has(p) || ps.Has(DefaultProfile) {
			return true
		}
	}
	return false
}

// hasExplicitProfile reports whether p itself appears in the identity
// slot's coverage, as opposed to being covered by the default.
func (i *Item) hasExplicitProfile(p Profile) bool {
	for _, ps := range i.values[KeyInstanceID] {
		if ps.Has(p) {
			return true
		}
	}
	return false
}

func (i *Item) hasAnyProfile() bool {
	for _, ps := range i.values[KeyInstanceID] {
		if !ps.Empty() {
			return true
		}
	}
	return false
}

// inheritableValue picks the one value of a slot a new profile should
// inherit: the sole value, or the default-covering one. Slots fragmented
// across named profiles with no default have no unambiguous answer.
func (i *Item) inheritableValue(key PropertyKey) (string, error) {
	vals := i.values[key]
	if len(vals) == 0 {
		return "", errs.Internalf("item %s has no value for %s", i.InstanceID(), key)
	}
	if v, ok := i.singleValue(key); ok {
		return v, nil
	}
	for v, ps := range vals {
		if ps.Has(DefaultProfile) {
			return v, nil
		}
	}
	return "", errs.Internalf("item %s: no single inheritable value for %s among %s",
		i.InstanceID(), key, strings.Join(sortedValues(vals), ", "))
}

// AddProfile extends the item to cover p, inheriting every slot's
// unambiguous value. Any fragmented slot makes the operation fail before
// the item is touched.
func (i *Item) AddProfile(p Profile) error {
	if i.hasProfile(p) {
		return nil
	}
	keys := i.sortedKeys()
	inherited := make(map[PropertyKey]string, len(keys))
	for _, key := range keys {
		v, err := i.inheritableValue(key)
		if err != nil {
			return fmt.Errorf("cannot extend item %s to profile %q: %w", i.InstanceID(), p, err)
		}
		inherited[key] = v
	}
	for _, key := range keys {
		v := inherited[key]
		target := NewProfileSet(p)
		if existing, ok := i.values[key][v]; ok {
			target = existing.Clone().Add(p)
		}
		if err := i.SetProperty(key, v, target, true); err != nil {
			return err
		}
	}
	return nil
}

// RemoveProfile withdraws the item from p. When splitDefault is true,
// default-covering sets are first materialized into the explicit named
// profiles they span, so removing p leaves the remaining siblings bound;
// when false, default coverage is left alone and only explicit
// memberships of p are dropped.
func (i *Item) RemoveProfile(p Profile, splitDefault bool) {
	for key, vals := range i.values {
		for v, ps := range vals {
			if splitDefault && ps.Has(DefaultProfile) {
				ps = i.materializeDefault(vals, v, ps)
				i.modified = true
				if ps.Empty() {
					delete(vals, v)
					continue
				}
			}
			if !ps.Has(p) {
				vals[v] = ps
				continue
			}
			ps = ps.Clone()
			ps.Remove(p)
			if ps.Empty() {
				delete(vals, v)
			} else {
				vals[v] = ps
			}
			i.modified = true
		}
		if len(vals) == 0 {
			delete(i.values, key)
		}
	}
}

// materializeDefault replaces default coverage with the explicit set of
// declared profiles it currently spans: every declared profile except
// those bound to a sibling value of the same slot, so the slot's sets
// stay pairwise disjoint.
func (i *Item) materializeDefault(vals map[string]ProfileSet, value string, ps ProfileSet) ProfileSet {
	out := ps.Clone()
	out.Remove(DefaultProfile)
	if i.hw != nil {
		for _, p := range i.hw.DeclaredProfiles() {
			out.Add(p)
		}
	}
	for v, other := range vals {
		if v == value {
			continue
		}
		for p := range other {
			out.Remove(p)
		}
	}
	return out
}

// sortedKeys returns the item's property keys in a stable order.
func (i *Item) sortedKeys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(i.values))
	for k := range i.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })
	return keys
}

func sortedValues(vals map[string]ProfileSet) []string {
	out := make([]string, 0, len(vals))
	for v := range vals {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// generateElements renders the item back into the minimal set of
// serialized elements: the coarsest partition of profile space in which
// every slot is single-valued, with identically-valued cells merged.
func (i *Item) generateElements() []ovf.Item {
	partition := []ProfileSet{}
	for _, key := range i.sortedKeys() {
		for _, v := range sortedValues(i.values[key]) {
			partition = refinePartition(partition, i.values[key][v])
		}
	}
	if len(partition) == 0 {
		return nil
	}

	type cell struct {
		profiles ProfileSet
		bindings map[PropertyKey]string
	}
	cells := make([]*cell, 0, len(partition))
	for _, ps := range partition {
		c := &cell{profiles: ps, bindings: make(map[PropertyKey]string)}
		for _, key := range i.sortedKeys() {
			if v, ok := i.lookup(key, ps); ok {
				c.bindings[key] = v
			}
		}
		cells = append(cells, c)
	}

	// Cells that resolved to identical bindings re-merge into one element.
	merged := make([]*cell, 0, len(cells))
	for _, c := range cells {
		absorbed := false
		for _, m := range merged {
			if bindingsEqual(m.bindings, c.bindings) {
				m.profiles = m.profiles.Union(c.profiles).normalize()
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, c)
		}
	}

	sort.Slice(merged, func(a, b int) bool {
		da, db := merged[a].profiles.Has(DefaultProfile), merged[b].profiles.Has(DefaultProfile)
		if da != db {
			return da
		}
		return merged[a].profiles.ToConfiguration() < merged[b].profiles.ToConfiguration()
	})

	elements := make([]ovf.Item, 0, len(merged))
	for _, c := range merged {
		elements = append(elements, i.renderElement(c.profiles, c.bindings))
	}
	return elements
}

func (i *Item) renderElement(profiles ProfileSet, bindings map[PropertyKey]string) ovf.Item {
	el := ovf.Item{
		Tag:           i.tag,
		Configuration: profiles.ToConfiguration(),
	}

	keys := make([]PropertyKey, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })

	childIndex := make(map[string]int)
	for _, key := range keys {
		v := bindings[key]
		if key.Kind != KindOpaque {
			v = i.substitute(v, profiles)
		}
		switch key.Kind {
		case KindAttribute:
			el.Attrs = append(el.Attrs, ovf.Attr{Name: key.Name, Value: v})
		case KindChildText:
			for _, part := range strings.Split(v, listSeparator) {
				if _, seen := childIndex[key.Name]; !seen {
					childIndex[key.Name] = len(el.Children)
				}
				el.Children = append(el.Children, ovf.Child{Name: key.Name, Value: part})
			}
		case KindOpaque:
			if orig, ok := i.opaqueChildren[v]; ok {
				el.Children = append(el.Children, orig)
			}
		}
	}
	// Child attributes attach to the first emitted child of their parent.
	for _, key := range keys {
		if key.Kind != KindChildAttribute {
			continue
		}
		idx, ok := childIndex[key.Parent]
		if !ok {
			continue
		}
		el.Children[idx].Attrs = append(el.Children[idx].Attrs, ovf.Attr{Name: key.Name, Value: i.substitute(bindings[key], profiles)})
	}
	return el
}

// refinePartition splits the running partition so the new set is a union
// of cells: each existing cell is divided into its intersection with ps
// and its remainder, and the uncovered part of ps becomes its own cell.
func refinePartition(partition []ProfileSet, ps ProfileSet) []ProfileSet {
	rest := ps.Clone()
	out := make([]ProfileSet, 0, len(partition)+1)
	for _, cell := range partition {
		inter := cell.Intersect(ps)
		if inter.Empty() || inter.Equal(cell) {
			out = append(out, cell)
		} else {
			out = append(out, inter, cell.Subtract(ps))
		}
		rest = rest.Subtract(cell)
	}
	if !rest.Empty() {
		out = append(out, rest)
	}
	return out
}

func bindingsEqual(a, b map[PropertyKey]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
