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
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/utils/collections"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/platform"
)

// resourceTypeByName maps the friendly device names used throughout the
// tool to CIM ResourceType numbers.
var resourceTypeByName = map[string]string{
	"cpu":      "3",
	"memory":   "4",
	"ide":      "5",
	"scsi":     "6",
	"ethernet": "10",
	"floppy":   "14",
	"cdrom":    "15",
	"dvd":      "16",
	"harddisk": "17",
	"sata":     "20",
	"serial":   "21",
	"parallel": "22",
	"usb":      "23",
}

var resourceNameByType = func() map[string]string {
	m := make(map[string]string, len(resourceTypeByName))
	for name, num := range resourceTypeByName {
		m[num] = name
	}
	return m
}()

// ResourceTypeNumber resolves a friendly device name to its numeric CIM
// resource type.
func ResourceTypeNumber(name string) (string, error) {
	num, ok := resourceTypeByName[name]
	if !ok {
		accepted := collections.GetKeys(resourceTypeByName)
		sort.Strings(accepted)
		return "", errs.Unsupported("resource type", name, accepted)
	}
	return num, nil
}

// ResourceTypeName resolves a numeric CIM resource type back to the
// friendly name, or returns the number unchanged when unknown.
func ResourceTypeName(num string) string {
	if name, ok := resourceNameByType[num]; ok {
		return name
	}
	return num
}

// itemDefaults seed fresh items fabricated without a donor.
type itemDefaults struct {
	elementName     string
	description     string
	allocationUnits string
	tag             string
}

var defaultsByName = map[string]itemDefaults{
	"cpu":      {elementName: "CPU", description: "Number of Virtual CPUs", allocationUnits: "hertz * 10^6", tag: ovf.TagItem},
	"memory":   {elementName: "Memory", description: "Memory Size", allocationUnits: "byte * 2^20", tag: ovf.TagItem},
	"ide":      {elementName: "IDE Controller", description: "IDE Controller", tag: ovf.TagItem},
	"scsi":     {elementName: "SCSI Controller", description: "SCSI Controller", tag: ovf.TagItem},
	"sata":     {elementName: "SATA Controller", description: "SATA Controller", tag: ovf.TagItem},
	"usb":      {elementName: "USB Controller", description: "USB Controller", tag: ovf.TagItem},
	"ethernet": {elementName: "Ethernet", description: "Ethernet Adapter", tag: ovf.TagEthernetPortItem},
	"harddisk": {elementName: "Hard Disk Drive", description: "Hard Disk", tag: ovf.TagStorageItem},
	"cdrom":    {elementName: "CD-ROM Drive", description: "CD-ROM Drive", tag: ovf.TagStorageItem},
	"dvd":      {elementName: "DVD Drive", description: "DVD Drive", tag: ovf.TagStorageItem},
	"floppy":   {elementName: "Floppy Drive", description: "Floppy Drive", tag: ovf.TagItem},
	"serial":   {elementName: "Serial Port", description: "Serial Port", tag: ovf.TagItem},
	"parallel": {elementName: "Parallel Port", description: "Parallel Port", tag: ovf.TagItem},
}

// Hardware is the profile-aware view of a virtual hardware section. Items
// are indexed by InstanceID; serialized elements sharing an InstanceID
// merge into one Item.
type Hardware struct {
	items    map[string]*Item
	profiles []Profile
	platform *platform.Platform
	logger   zerolog.Logger
}

// NewHardware ingests the parsed section. profiles lists the deployment
// configurations declared by the descriptor, in declaration order.
func NewHardware(section *ovf.VirtualHardwareSection, profiles []Profile, plat *platform.Platform, logger zerolog.Logger) (*Hardware, error) {
	hw := &Hardware{
		items:    make(map[string]*Item),
		profiles: append([]Profile(nil), profiles...),
		platform: plat,
		logger:   logger.With().Str("component", "hardware").Logger(),
	}
	if section == nil {
		return hw, nil
	}
	for _, el := range section.AllItems() {
		id, _ := el.ChildValue("InstanceID")
		if id == "" {
			num, _ := el.ChildValue("ResourceType")
			return nil, errs.Internalf("hardware element of type %s has no InstanceID",
				ResourceTypeName(num))
		}
		it, ok := hw.items[id]
		if !ok {
			it = newItem(hw, el.Tag)
			hw.items[id] = it
		}
		if err := it.ingest(el); err != nil {
			return nil, fmt.Errorf("hardware item %s: %w", id, err)
		}
		it.modified = false
	}
	return hw, nil
}

// DeclaredProfiles returns the named configurations known to the
// descriptor, in declaration order.
func (h *Hardware) DeclaredProfiles() []Profile {
	return append([]Profile(nil), h.profiles...)
}

// HasProfileDeclared reports whether p is a declared configuration.
func (h *Hardware) HasProfileDeclared(p Profile) bool {
	for _, d := range h.profiles {
		if d == p {
			return true
		}
	}
	return false
}

// DeclareProfile records a newly created configuration.
func (h *Hardware) DeclareProfile(p Profile) {
	if !h.HasProfileDeclared(p) {
		h.profiles = append(h.profiles, p)
	}
}

// UndeclareProfile withdraws a configuration and strips every item's
// membership in it, materializing default coverage so sibling profiles
// keep their bindings.
func (h *Hardware) UndeclareProfile(p Profile) {
	for id, it := range h.items {
		it.RemoveProfile(p, true)
		if !it.hasAnyProfile() {
			h.logger.Debug().Str("instance", id).Msg("item existed only under deleted profile, dropping")
			delete(h.items, id)
		}
	}
	kept := h.profiles[:0]
	for _, d := range h.profiles {
		if d != p {
			kept = append(kept, d)
		}
	}
	h.profiles = kept
}

// Platform returns the capability table the hardware is validated against.
func (h *Hardware) Platform() *platform.Platform { return h.platform }

// Item returns the item with the given InstanceID, or nil.
func (h *Hardware) Item(instanceID string) *Item { return h.items[instanceID] }

// sortedItems returns all items in natural InstanceID order.
func (h *Hardware) sortedItems() []*Item {
	ids := make([]string, 0, len(h.items))
	for id := range h.items {
		ids = append(ids, id)
	}
	collections.SortNatural(ids)
	out := make([]*Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.items[id])
	}
	return out
}

// FindAllItems returns items of the named resource type whose properties
// match every entry of props under the given profiles, in natural
// InstanceID order. An empty typeName matches all types; nil profiles
// means the default profile.
func (h *Hardware) FindAllItems(typeName string, props map[PropertyKey]string, profiles ProfileSet) ([]*Item, error) {
	wantType := ""
	if typeName != "" {
		num, err := ResourceTypeNumber(typeName)
		if err != nil {
			return nil, err
		}
		wantType = num
	}
	var out []*Item
	for _, it := range h.sortedItems() {
		if wantType != "" && it.ResourceTypeNumber() != wantType {
			continue
		}
		if !profiles.Empty() {
			present := true
			for p := range profiles {
				if !it.hasProfile(p) {
					present = false
					break
				}
			}
			if !present {
				continue
			}
		}
		// Property matching scans the resolved value regardless of the
		// profile filter.
		match := true
		for key, want := range props {
			if it.GetValue(key, nil) != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, it)
		}
	}
	return out, nil
}

// FindItem returns the single matching item, nil when none matches, and
// an error when the match is ambiguous.
func (h *Hardware) FindItem(typeName string, props map[PropertyKey]string, profiles ProfileSet) (*Item, error) {
	matches, err := h.FindAllItems(typeName, props, profiles)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.InstanceID()
		}
		return nil, errs.Internalf("%d %s items match the given properties (instances %v), expected at most one",
			len(matches), typeName, ids)
	}
}

// ItemCountPerProfile counts items of the named type under each profile.
// nil profiles means the default plus every declared configuration.
func (h *Hardware) ItemCountPerProfile(typeName string, profiles []Profile) (map[Profile]int, error) {
	if profiles == nil {
		profiles = append([]Profile{DefaultProfile}, h.profiles...)
	}
	items, err := h.FindAllItems(typeName, nil, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[Profile]int, len(profiles))
	for _, p := range profiles {
		counts[p] = 0
		for _, it := range items {
			if it.hasProfile(p) {
				counts[p]++
			}
		}
	}
	return counts, nil
}

// SetItemCountPerProfile reconciles the number of items of the named type
// under each listed profile. Walking items in ascending natural order,
// the first count items per profile are kept, surplus memberships are
// withdrawn, short profiles first adopt items existing under other
// profiles, and remaining shortfall is met by cloning the most recently
// seen item of that type.
func (h *Hardware) SetItemCountPerProfile(typeName string, count int, profiles []Profile) error {
	if count < 0 {
		return errs.InvalidInputf("item count must be non-negative, got %d", count)
	}
	if profiles == nil {
		profiles = append([]Profile{DefaultProfile}, h.profiles...)
	}
	items, err := h.FindAllItems(typeName, nil, nil)
	if err != nil {
		return err
	}

	seen := make(map[Profile]int, len(profiles))
	var donor *Item
	for _, it := range items {
		// RemoveProfile can drain the item's values, so its identity must
		// be captured up front.
		id := it.InstanceID()
		inUse := false
		for _, p := range profiles {
			switch {
			case it.hasProfile(p):
				if seen[p] < count {
					seen[p]++
					inUse = true
				} else {
					// Default-covered membership needs the default split
					// into explicit names before p can be withdrawn.
					it.RemoveProfile(p, !it.hasExplicitProfile(p))
				}
			case seen[p] < count:
				if err := it.AddProfile(p); err != nil {
					return err
				}
				seen[p]++
				inUse = true
			}
		}
		if inUse {
			donor = it
		}
		if !it.hasAnyProfile() {
			h.logger.Debug().Str("instance", id).Str("type", typeName).
				Msg("item no longer present under any profile, dropping")
			delete(h.items, id)
		}
	}

	for {
		needy := NewProfileSet()
		for _, p := range profiles {
			if seen[p] < count {
				needy.Add(p)
			}
		}
		if needy.Empty() {
			break
		}
		clone, err := h.cloneOrCreate(typeName, donor, needy)
		if err != nil {
			return err
		}
		for p := range needy {
			ordinal := seen[p] + 1
			if typeName == "ethernet" && h.platform != nil {
				name := h.platform.GuessNICName(ordinal)
				if err := clone.SetProperty(KeyElementName, name, NewProfileSet(p), true); err != nil {
					return err
				}
			}
			seen[p]++
		}
		donor = clone
	}
	return nil
}

// cloneOrCreate adds one item of the named type covering exactly the needy
// profiles, copying the donor's unambiguous values or fabricating a
// minimal item when no donor exists.
func (h *Hardware) cloneOrCreate(typeName string, donor *Item, needy ProfileSet) (*Item, error) {
	id := h.nextInstanceID()

	var it *Item
	if donor != nil {
		it = newItem(h, donor.tag)
		for _, key := range donor.sortedKeys() {
			if key == KeyInstanceID {
				continue
			}
			v, err := donor.inheritableValue(key)
			if err != nil {
				return nil, fmt.Errorf("cannot clone %s item %s: %w", typeName, donor.InstanceID(), err)
			}
			if err := it.SetProperty(key, v, needy.Clone(), true); err != nil {
				return nil, err
			}
		}
		for form, child := range donor.opaqueChildren {
			it.opaqueChildren[form] = child
		}
		next, ok, err := h.nextAddressOnParent(typeName, donor)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := it.SetProperty(KeyAddressOnParent, strconv.Itoa(next), needy.Clone(), true); err != nil {
				return nil, err
			}
		}
	} else {
		var err error
		it, err = h.fabricate(typeName, needy)
		if err != nil {
			return nil, err
		}
	}
	if err := it.SetProperty(KeyInstanceID, id, needy.Clone(), true); err != nil {
		return nil, err
	}
	h.items[id] = it
	h.logger.Debug().Str("instance", id).Str("type", typeName).
		Str("profiles", needy.String()).Msg("created hardware item")
	return it, nil
}

// NewItem fabricates an item of the named type under the given profiles
// with no donor, returning it for further property assignment.
func (h *Hardware) NewItem(typeName string, profiles ProfileSet) (*Item, error) {
	if profiles.Empty() {
		profiles = NewProfileSet(DefaultProfile)
	}
	it, err := h.fabricate(typeName, profiles)
	if err != nil {
		return nil, err
	}
	id := h.nextInstanceID()
	if err := it.SetProperty(KeyInstanceID, id, profiles.Clone(), true); err != nil {
		return nil, err
	}
	h.items[id] = it
	return it, nil
}

// DeleteItem removes the item from the collection entirely.
func (h *Hardware) DeleteItem(it *Item) {
	delete(h.items, it.InstanceID())
}

func (h *Hardware) fabricate(typeName string, profiles ProfileSet) (*Item, error) {
	num, err := ResourceTypeNumber(typeName)
	if err != nil {
		return nil, err
	}
	def, ok := defaultsByName[typeName]
	if !ok {
		def = itemDefaults{elementName: typeName, description: typeName, tag: ovf.TagItem}
	}
	it := newItem(h, def.tag)
	set := func(key PropertyKey, v string) error {
		if v == "" {
			return nil
		}
		return it.SetProperty(key, v, profiles.Clone(), true)
	}
	if err := set(KeyResourceType, num); err != nil {
		return nil, err
	}
	if err := set(KeyElementName, def.elementName); err != nil {
		return nil, err
	}
	if err := set(KeyDescription, def.description); err != nil {
		return nil, err
	}
	if err := set(KeyAllocationUnits, def.allocationUnits); err != nil {
		return nil, err
	}
	return it, nil
}

// nextInstanceID returns one greater than the highest numeric InstanceID
// in the collection.
func (h *Hardware) nextInstanceID() string {
	max := 0
	for id := range h.items {
		if n, err := strconv.Atoi(id); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// nextAddressOnParent computes the next free AddressOnParent among items
// of the donor's type. ok is false when the donor carries no address.
// Donors whose address varies across profiles or is not an integer are
// not supported.
func (h *Hardware) nextAddressOnParent(typeName string, donor *Item) (int, bool, error) {
	vals := donor.values[KeyAddressOnParent]
	if len(vals) == 0 {
		return 0, false, nil
	}
	if len(vals) > 1 {
		return 0, false, errs.Internalf(
			"%s item %s has profile-dependent AddressOnParent values, cloning it is not supported",
			typeName, donor.InstanceID())
	}
	v, _ := donor.singleValue(KeyAddressOnParent)
	if _, err := strconv.Atoi(v); err != nil {
		return 0, false, errs.Internalf(
			"%s item %s has non-integer AddressOnParent %q, cloning it is not supported",
			typeName, donor.InstanceID(), v)
	}

	max := -1
	items, err := h.FindAllItems(typeName, nil, nil)
	if err != nil {
		return 0, false, err
	}
	for _, it := range items {
		for addr := range it.values[KeyAddressOnParent] {
			if n, err := strconv.Atoi(addr); err == nil && n > max {
				max = n
			}
		}
	}
	return max + 1, true, nil
}

// SetValueForAllItems sets one property across every matching item. When
// createNew is true and no item of the type exists, one is fabricated
// under the given profiles first.
func (h *Hardware) SetValueForAllItems(typeName string, key PropertyKey, value string, profiles ProfileSet, createNew bool) error {
	items, err := h.FindAllItems(typeName, nil, profiles)
	if err != nil {
		return err
	}
	if len(items) == 0 && createNew {
		it, err := h.NewItem(typeName, profiles.Clone())
		if err != nil {
			return err
		}
		items = append(items, it)
	}
	for _, it := range items {
		target := profiles
		if target != nil {
			target = target.Clone()
		}
		if err := it.SetProperty(key, value, target, true); err != nil {
			return err
		}
	}
	return nil
}

// SetItemValuesPerProfile assigns values positionally to matching items in
// natural order. Items beyond the value list receive def when non-empty
// and are left alone otherwise; surplus values are logged and dropped.
func (h *Hardware) SetItemValuesPerProfile(typeName string, key PropertyKey, values []string, profiles ProfileSet, def string) error {
	items, err := h.FindAllItems(typeName, nil, profiles)
	if err != nil {
		return err
	}
	for i, it := range items {
		v := def
		if i < len(values) {
			v = values[i]
		}
		if v == "" {
			continue
		}
		target := profiles
		if target != nil {
			target = target.Clone()
		}
		if err := it.SetProperty(key, v, target, true); err != nil {
			return err
		}
	}
	if len(values) > len(items) {
		h.logger.Warn().Str("type", typeName).Str("property", key.String()).
			Int("items", len(items)).Int("values", len(values)).
			Msg("more values than items, surplus values ignored")
	}
	return nil
}

// GenerateSection renders the collection back into the section, replacing
// its hardware elements. Items emit in natural InstanceID order and their
// modified flags clear.
func (h *Hardware) GenerateSection(section *ovf.VirtualHardwareSection) {
	var elements []ovf.Item
	for _, it := range h.sortedItems() {
		elements = append(elements, it.generateElements()...)
		it.modified = false
	}
	section.SetItems(elements)
}
