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
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/platform"
)

func element(tag, configuration string, children map[string]string) ovf.Item {
	el := ovf.Item{Tag: tag, Configuration: configuration}
	for name, value := range children {
		el.Children = append(el.Children, ovf.Child{Name: name, Value: value})
	}
	return el
}

func testSection(items ...ovf.Item) *ovf.VirtualHardwareSection {
	s := &ovf.VirtualHardwareSection{}
	s.SetItems(items)
	return s
}

func mustHardware(t *testing.T, section *ovf.VirtualHardwareSection, profiles ...Profile) *Hardware {
	t.Helper()
	hw, err := NewHardware(section, profiles, platform.NewRegistry().Generic(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return hw
}

func Test_ResourceTypeNumber(t *testing.T) {
	num, err := ResourceTypeNumber("ethernet")
	assert.NoError(t, err)
	assert.Equal(t, "10", num)

	_, err = ResourceTypeNumber("teleporter")
	assert.Equal(t, errs.ValueUnsupported, errs.KindOf(err))
}

func Test_ResourceTypeName_UnknownNumberPassesThrough(t *testing.T) {
	assert.Equal(t, "harddisk", ResourceTypeName("17"))
	assert.Equal(t, "99", ResourceTypeName("99"))
}

func Test_NewHardware_RejectsElementsWithoutInstanceID(t *testing.T) {
	section := testSection(element(ovf.TagItem, "", map[string]string{"ResourceType": "3"}))
	_, err := NewHardware(section, nil, nil, zerolog.Nop())
	assert.Equal(t, errs.Internal, errs.KindOf(err))
}

func Test_NewHardware_MergesElementsSharingInstanceID(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "small", map[string]string{
			"InstanceID": "1", "ResourceType": "3", "VirtualQuantity": "1",
		}),
		element(ovf.TagItem, "large", map[string]string{
			"InstanceID": "1", "ResourceType": "3", "VirtualQuantity": "8",
		}),
	)
	hw := mustHardware(t, section, "small", "large")

	it := hw.Item("1")
	assert.NotNil(t, it)
	assert.Equal(t, "1", it.GetValue(KeyVirtualQuantity, NewProfileSet("small")))
	assert.Equal(t, "8", it.GetValue(KeyVirtualQuantity, NewProfileSet("large")))
	assert.False(t, it.Modified())
}

func Test_FindAllItems_FiltersByTypeAndProperties(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "6", "Address": "0"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "2", "ResourceType": "6", "Address": "1"}),
		element(ovf.TagStorageItem, "", map[string]string{"InstanceID": "3", "ResourceType": "17", "Parent": "1"}),
	)
	hw := mustHardware(t, section)

	scsi, err := hw.FindAllItems("scsi", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, scsi, 2)

	at1, err := hw.FindAllItems("scsi", map[PropertyKey]string{KeyAddress: "1"}, nil)
	assert.NoError(t, err)
	assert.Len(t, at1, 1)
	assert.Equal(t, "2", at1[0].InstanceID())
}

func Test_FindAllItems_RequiresEveryListedProfile(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "a", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "a b", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "a", "b")

	items, err := hw.FindAllItems("ethernet", nil, NewProfileSet("a", "b"))
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "2", items[0].InstanceID())
}

func Test_FindAllItems_PropertyMatchIgnoresProfileFilter(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{
			"InstanceID": "1", "ResourceType": "10", "Connection": "lan",
		}),
		element(ovf.TagEthernetPortItem, "a", map[string]string{
			"InstanceID": "1", "ResourceType": "10", "Connection": "wan",
		}),
	)
	hw := mustHardware(t, section, "a")

	items, err := hw.FindAllItems("ethernet", map[PropertyKey]string{KeyConnection: "lan"}, NewProfileSet("a"))
	assert.NoError(t, err)
	assert.Len(t, items, 1)
}

func Test_FindAllItems_ReturnsNaturalInstanceOrder(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "10", "ResourceType": "21"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "2", "ResourceType": "21"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "21"}),
	)
	hw := mustHardware(t, section)

	items, err := hw.FindAllItems("serial", nil, nil)
	assert.NoError(t, err)
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.InstanceID()
	}
	assert.Equal(t, []string{"1", "2", "10"}, ids)
}

func Test_FindItem_AmbiguousMatchIsAnError(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "5"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "2", "ResourceType": "5"}),
	)
	hw := mustHardware(t, section)

	_, err := hw.FindItem("ide", nil, nil)
	assert.Equal(t, errs.Internal, errs.KindOf(err))

	missing, err := hw.FindItem("scsi", nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func Test_ItemCountPerProfile_CountsDefaultCoverage(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "big", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "small", "big")

	counts, err := hw.ItemCountPerProfile("ethernet", nil)
	assert.NoError(t, err)
	assert.Equal(t, map[Profile]int{DefaultProfile: 1, "small": 1, "big": 2}, counts)
}

func Test_SetItemCountPerProfile_GrowsByCloning(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{
			"InstanceID": "3", "ResourceType": "10", "AddressOnParent": "11",
			"ElementName": "Ethernet0", "Connection": "lan",
		}),
	)
	hw := mustHardware(t, section)

	assert.NoError(t, hw.SetItemCountPerProfile("ethernet", 3, nil))

	items, err := hw.FindAllItems("ethernet", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, items, 3)

	addresses := map[string]bool{}
	for _, it := range items {
		addresses[it.GetValue(KeyAddressOnParent, nil)] = true
		assert.Equal(t, "lan", it.GetValue(KeyConnection, nil))
	}
	assert.Len(t, addresses, 3, "AddressOnParent values must be pairwise distinct")
	assert.True(t, addresses["11"] && addresses["12"] && addresses["13"])
}

func Test_SetItemCountPerProfile_NamesClonedNICsByPlatformConvention(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{
			"InstanceID": "1", "ResourceType": "10", "ElementName": "Ethernet0",
		}),
	)
	hw := mustHardware(t, section)

	assert.NoError(t, hw.SetItemCountPerProfile("ethernet", 2, nil))
	items, err := hw.FindAllItems("ethernet", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "Ethernet1", items[1].GetValue(KeyElementName, nil))
}

func Test_SetItemCountPerProfile_ShrinksPerProfile(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "a", "b")

	assert.NoError(t, hw.SetItemCountPerProfile("ethernet", 1, []Profile{"a", "b"}))

	counts, err := hw.ItemCountPerProfile("ethernet", []Profile{"a", "b"})
	assert.NoError(t, err)
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 1, counts["b"])
}

func Test_SetItemCountPerProfile_DropsItemsLeftWithNoProfiles(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "a", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "a", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "a")

	assert.NoError(t, hw.SetItemCountPerProfile("ethernet", 1, []Profile{"a"}))
	assert.Nil(t, hw.Item("2"))
	assert.NotNil(t, hw.Item("1"))
}

func Test_SetItemCountPerProfile_AdoptsExistingItemsBeforeCloning(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "a", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "a", "b")

	assert.NoError(t, hw.SetItemCountPerProfile("ethernet", 1, []Profile{"a", "b"}))

	items, err := hw.FindAllItems("ethernet", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, items, 1, "the existing item is adopted rather than cloned")
	assert.True(t, items[0].hasProfile("b"))
}

func Test_SetItemCountPerProfile_ZeroRemovesAll(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "21"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "2", "ResourceType": "21"}),
	)
	hw := mustHardware(t, section)

	assert.NoError(t, hw.SetItemCountPerProfile("serial", 0, nil))
	items, err := hw.FindAllItems("serial", nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, items)
}

func Test_SetItemCountPerProfile_RejectsNegativeCount(t *testing.T) {
	hw := mustHardware(t, testSection())
	err := hw.SetItemCountPerProfile("ethernet", -1, nil)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func Test_SetItemCountPerProfile_FabricatesWithoutDonor(t *testing.T) {
	hw := mustHardware(t, testSection())

	assert.NoError(t, hw.SetItemCountPerProfile("serial", 2, nil))
	items, err := hw.FindAllItems("serial", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "21", items[0].ResourceTypeNumber())
}

func Test_NewItem_SeedsTypeDefaults(t *testing.T) {
	hw := mustHardware(t, testSection())

	it, err := hw.NewItem("memory", nil)
	assert.NoError(t, err)
	assert.Equal(t, "4", it.ResourceTypeNumber())
	assert.Equal(t, "Memory", it.GetValue(KeyElementName, nil))
	assert.Equal(t, "byte * 2^20", it.GetValue(KeyAllocationUnits, nil))
}

func Test_NewItem_AssignsNextFreeInstanceID(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "7", "ResourceType": "3"}),
	)
	hw := mustHardware(t, section)

	it, err := hw.NewItem("serial", nil)
	assert.NoError(t, err)
	assert.Equal(t, "8", it.InstanceID())
}

func Test_SetValueForAllItems_CreatesItemOnDemand(t *testing.T) {
	hw := mustHardware(t, testSection())

	assert.NoError(t, hw.SetValueForAllItems("cpu", KeyVirtualQuantity, "4", nil, true))
	items, err := hw.FindAllItems("cpu", nil, nil)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "4", items[0].GetValue(KeyVirtualQuantity, nil))
}

func Test_SetValueForAllItems_NoCreateLeavesCollectionAlone(t *testing.T) {
	hw := mustHardware(t, testSection())

	assert.NoError(t, hw.SetValueForAllItems("cpu", KeyVirtualQuantity, "4", nil, false))
	items, err := hw.FindAllItems("cpu", nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, items)
}

func Test_SetItemValuesPerProfile_AssignsPositionally(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "3", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section)

	assert.NoError(t, hw.SetItemValuesPerProfile("ethernet", KeyConnection,
		[]string{"mgmt", "lan"}, nil, "lan"))

	assert.Equal(t, "mgmt", hw.Item("1").GetValue(KeyConnection, nil))
	assert.Equal(t, "lan", hw.Item("2").GetValue(KeyConnection, nil))
	assert.Equal(t, "lan", hw.Item("3").GetValue(KeyConnection, nil), "items beyond the list receive the default")
}

func Test_UndeclareProfile_DropsExclusiveItemsKeepsShared(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "a", map[string]string{"InstanceID": "1", "ResourceType": "10"}),
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "2", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section, "a", "b")

	hw.UndeclareProfile("a")
	assert.Nil(t, hw.Item("1"))
	shared := hw.Item("2")
	assert.NotNil(t, shared)
	assert.True(t, shared.hasProfile("b"))
	assert.False(t, hw.HasProfileDeclared("a"))
}

func Test_GenerateSection_RoutesItemsByTag(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "3"}),
		element(ovf.TagStorageItem, "", map[string]string{"InstanceID": "2", "ResourceType": "17"}),
		element(ovf.TagEthernetPortItem, "", map[string]string{"InstanceID": "3", "ResourceType": "10"}),
	)
	hw := mustHardware(t, section)

	var out ovf.VirtualHardwareSection
	hw.GenerateSection(&out)
	assert.Len(t, out.Item, 1)
	assert.Len(t, out.StorageItem, 1)
	assert.Len(t, out.EthernetPortItem, 1)
	assert.False(t, hw.Item("1").Modified())
}

func Test_GenerateSection_EmitsInNaturalInstanceOrder(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "10", "ResourceType": "21"}),
		element(ovf.TagItem, "", map[string]string{"InstanceID": "2", "ResourceType": "21"}),
	)
	hw := mustHardware(t, section)

	var out ovf.VirtualHardwareSection
	hw.GenerateSection(&out)
	ids := make([]string, len(out.Item))
	for i := range out.Item {
		ids[i], _ = out.Item[i].ChildValue("InstanceID")
	}
	assert.Equal(t, []string{"2", "10"}, ids)
}

func Test_CloneRejectsProfileDependentAddresses(t *testing.T) {
	section := testSection(
		element(ovf.TagEthernetPortItem, "a", map[string]string{
			"InstanceID": "1", "ResourceType": "10", "AddressOnParent": "1",
		}),
		element(ovf.TagEthernetPortItem, "b", map[string]string{
			"InstanceID": "1", "ResourceType": "10", "AddressOnParent": "2",
		}),
	)
	hw := mustHardware(t, section, "a", "b")

	_, _, err := hw.nextAddressOnParent("ethernet", hw.Item("1"))
	assert.Equal(t, errs.Internal, errs.KindOf(err))
}

func Test_NextAddressOnParent_SkipsAddresslessDonors(t *testing.T) {
	section := testSection(
		element(ovf.TagItem, "", map[string]string{"InstanceID": "1", "ResourceType": "3"}),
	)
	hw := mustHardware(t, section)

	_, ok, err := hw.nextAddressOnParent("cpu", hw.Item("1"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func Test_NextAddressOnParent_UsesGlobalMaximum(t *testing.T) {
	items := make([]ovf.Item, 0, 3)
	for i := 1; i <= 3; i++ {
		items = append(items, element(ovf.TagEthernetPortItem, "", map[string]string{
			"InstanceID": strconv.Itoa(i), "ResourceType": "10", "AddressOnParent": strconv.Itoa(i * 3),
		}))
	}
	hw := mustHardware(t, testSection(items...))

	next, ok, err := hw.nextAddressOnParent("ethernet", hw.Item("1"))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, next)
}
