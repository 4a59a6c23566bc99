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

package descriptor

import (
	"strconv"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/utils/collections"
	"github.com/ovfkit/ovf-edit-tools/common/utils/validation"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/hardware"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
)

// SetCPUCount sets the virtual CPU count under the given profiles.
func (d *Document) SetCPUCount(count int, profiles []string) error {
	if err := d.platform.ValidateCPUCount(count); err != nil {
		return err
	}
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetValueForAllItems("cpu", hardware.KeyVirtualQuantity,
		strconv.Itoa(count), set, true)
}

// SetMemoryMB sets the memory allocation in MiB under the given profiles.
func (d *Document) SetMemoryMB(mb int, profiles []string) error {
	if err := d.platform.ValidateMemoryMB(mb); err != nil {
		return err
	}
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	if err := d.hw.SetValueForAllItems("memory", hardware.KeyVirtualQuantity,
		strconv.Itoa(mb), set, true); err != nil {
		return err
	}
	return d.hw.SetValueForAllItems("memory", hardware.KeyAllocationUnits,
		"byte * 2^20", set, false)
}

// SetNICCount reconciles the number of network interfaces per profile.
func (d *Document) SetNICCount(count int, profiles []string) error {
	if err := d.platform.ValidateNICCount(count); err != nil {
		return err
	}
	_, list, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetItemCountPerProfile("ethernet", count, list)
}

// SetSerialCount reconciles the number of serial ports per profile.
func (d *Document) SetSerialCount(count int, profiles []string) error {
	if err := d.platform.ValidateSerialCount(count); err != nil {
		return err
	}
	_, list, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetItemCountPerProfile("serial", count, list)
}

// SetNICSubtypes sets the NIC adapter subtype on every interface. More
// than one subtype renders as a space-separated preference list.
func (d *Document) SetNICSubtypes(subtypes []string, profiles []string) error {
	canonical := make([]string, len(subtypes))
	for i, s := range subtypes {
		c, err := validation.CanonicalizeNICSubtype(s)
		if err != nil {
			return err
		}
		if err := d.platform.ValidateNICSubtype(c); err != nil {
			return err
		}
		canonical[i] = c
	}
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetValueForAllItems("ethernet", hardware.KeyResourceSubType,
		strings.Join(canonical, " "), set, false)
}

// SetNICNetworks maps interfaces to networks positionally; interfaces
// beyond the list reuse the last network. Networks are declared in the
// network section on first use.
func (d *Document) SetNICNetworks(networks []string, profiles []string) error {
	if len(networks) == 0 {
		return nil
	}
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	for _, name := range networks {
		d.ensureNetwork(name)
	}
	return d.hw.SetItemValuesPerProfile("ethernet", hardware.KeyConnection,
		networks, set, networks[len(networks)-1])
}

// SetNICNames renames interfaces positionally. Interfaces beyond the
// list keep their current names.
func (d *Document) SetNICNames(names []string, profiles []string) error {
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetItemValuesPerProfile("ethernet", hardware.KeyElementName,
		names, set, "")
}

// SetMACAddresses assigns MAC addresses positionally to interfaces.
func (d *Document) SetMACAddresses(macs []string, profiles []string) error {
	for _, mac := range macs {
		if err := validation.ValidateMACAddress(mac); err != nil {
			return err
		}
	}
	set, _, err := d.profileSet(profiles)
	if err != nil {
		return err
	}
	return d.hw.SetItemValuesPerProfile("ethernet", hardware.KeyAddress,
		macs, set, "")
}

func (d *Document) ensureNetwork(name string) {
	if d.env.Network == nil {
		d.env.Network = &ovf.NetworkSection{
			Section: ovf.Section{Info: "The list of logical networks"},
		}
	}
	declared := make([]string, 0, len(d.env.Network.Networks))
	for _, n := range d.env.Network.Networks {
		declared = append(declared, n.Name)
	}
	if collections.ContainsString(declared, name) {
		return
	}
	d.env.Network.Networks = append(d.env.Network.Networks, ovf.Network{
		Name:        name,
		Description: name + " network",
	})
}
