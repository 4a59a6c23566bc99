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

// Package platform holds per-VM-platform constraints: hardware bounds,
// supported NIC subtypes, NIC naming conventions and bootstrap-disk
// placement. Platforms are looked up by the product class string of the
// descriptor's ProductSection; unknown classes resolve to a permissive
// generic platform.
package platform

import (
	"fmt"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

// DeviceKind distinguishes the disk device classes a platform constrains.
type DeviceKind string

const (
	// KindHardDisk is a hard disk drive device.
	KindHardDisk DeviceKind = "harddisk"
	// KindCDROM is an optical drive device.
	KindCDROM DeviceKind = "cdrom"
)

// Platform describes one virtual machine platform's constraints. All value
// checks fail with the same typed errors as package validation, carrying the
// platform-specific bound or accepted set.
type Platform struct {
	Name string

	CPUMin, CPUMax       int
	RAMMinMB, RAMMaxMB   int
	NICMin, NICMax       int
	SerialMin, SerialMax int

	// NICSubtypes lists the supported NIC subtype strings; empty means any.
	NICSubtypes []string

	// nicName derives the display name of the n-th NIC, 1-indexed.
	nicName func(n int) string

	// BootstrapDiskKind is the device class carrying the bootstrap
	// configuration, and BootstrapFilenames the file name(s) expected on it.
	BootstrapDiskKind  DeviceKind
	BootstrapFilenames []string

	// controllerForKind gives the default controller type per device class.
	controllerForKind map[DeviceKind]string
}

// ValidateCPUCount checks the CPU count against the platform's bounds.
func (p *Platform) ValidateCPUCount(n int) error {
	if n < p.CPUMin {
		return errs.TooLow(p.Name+" CPUs", n, p.CPUMin)
	}
	if n > p.CPUMax {
		return errs.TooHigh(p.Name+" CPUs", n, p.CPUMax)
	}
	return nil
}

// ValidateMemoryMB checks the RAM amount in MiB against the platform's bounds.
func (p *Platform) ValidateMemoryMB(n int) error {
	if n < p.RAMMinMB {
		return errs.TooLow(p.Name+" memory MiB", n, p.RAMMinMB)
	}
	if n > p.RAMMaxMB {
		return errs.TooHigh(p.Name+" memory MiB", n, p.RAMMaxMB)
	}
	return nil
}

// ValidateNICCount checks the NIC count against the platform's bounds.
func (p *Platform) ValidateNICCount(n int) error {
	if n < p.NICMin {
		return errs.TooLow(p.Name+" NICs", n, p.NICMin)
	}
	if n > p.NICMax {
		return errs.TooHigh(p.Name+" NICs", n, p.NICMax)
	}
	return nil
}

// ValidateSerialCount checks the serial port count against the platform's bounds.
func (p *Platform) ValidateSerialCount(n int) error {
	if n < p.SerialMin {
		return errs.TooLow(p.Name+" serial ports", n, p.SerialMin)
	}
	if n > p.SerialMax {
		return errs.TooHigh(p.Name+" serial ports", n, p.SerialMax)
	}
	return nil
}

// ValidateNICSubtype checks subtype against the platform's supported set.
func (p *Platform) ValidateNICSubtype(subtype string) error {
	if len(p.NICSubtypes) == 0 {
		return nil
	}
	for _, s := range p.NICSubtypes {
		if s == subtype {
			return nil
		}
	}
	return errs.Unsupported(p.Name+" NIC subtype", subtype, p.NICSubtypes)
}

// GuessNICName returns the platform's conventional name of the n-th NIC,
// 1-indexed.
func (p *Platform) GuessNICName(n int) string {
	return p.nicName(n)
}

// ControllerTypeForDevice returns the default controller type for a device
// class on this platform.
func (p *Platform) ControllerTypeForDevice(kind DeviceKind) string {
	if t, ok := p.controllerForKind[kind]; ok {
		return t
	}
	return "ide"
}

// Registry maps product class identifiers to platform descriptors.
type Registry struct {
	byClass map[string]*Platform
	generic *Platform
}

// Lookup resolves a product class string. Unknown classes resolve to the
// generic platform.
func (r *Registry) Lookup(productClass string) *Platform {
	if p, ok := r.byClass[productClass]; ok {
		return p
	}
	return r.generic
}

// Generic returns the fallback platform.
func (r *Registry) Generic() *Platform {
	return r.generic
}

// NewRegistry builds the registry of known platforms with the generic
// fallback registered explicitly.
func NewRegistry() *Registry {
	generic := &Platform{
		Name:   "(generic platform)",
		CPUMin: 1, CPUMax: 1024,
		RAMMinMB: 1, RAMMaxMB: 1 << 20,
		NICMin: 0, NICMax: 1024,
		SerialMin: 0, SerialMax: 1024,
		nicName:            func(n int) string { return fmt.Sprintf("Ethernet%d", n-1) },
		BootstrapDiskKind:  KindCDROM,
		BootstrapFilenames: []string{"config.txt"},
		controllerForKind: map[DeviceKind]string{
			KindHardDisk: "ide",
			KindCDROM:    "ide",
		},
	}

	csr1000v := &Platform{
		Name:   "Cisco CSR1000V",
		CPUMin: 1, CPUMax: 8,
		RAMMinMB: 2560, RAMMaxMB: 16384,
		NICMin: 3, NICMax: 26,
		SerialMin: 0, SerialMax: 2,
		NICSubtypes:        []string{"virtio", "VMXNET3"},
		nicName:            func(n int) string { return fmt.Sprintf("GigabitEthernet%d", n) },
		BootstrapDiskKind:  KindCDROM,
		BootstrapFilenames: []string{"iosxe_config.txt"},
		controllerForKind: map[DeviceKind]string{
			KindHardDisk: "scsi",
			KindCDROM:    "ide",
		},
	}

	iosv := &Platform{
		Name:   "Cisco IOSv",
		CPUMin: 1, CPUMax: 1,
		RAMMinMB: 192, RAMMaxMB: 3072,
		NICMin: 0, NICMax: 16,
		SerialMin: 1, SerialMax: 2,
		NICSubtypes:        []string{"E1000"},
		nicName:            func(n int) string { return fmt.Sprintf("GigabitEthernet0/%d", n-1) },
		BootstrapDiskKind:  KindHardDisk,
		BootstrapFilenames: []string{"ios_config.txt"},
		controllerForKind: map[DeviceKind]string{
			KindHardDisk: "ide",
			KindCDROM:    "ide",
		},
	}

	iosxrv := &Platform{
		Name:   "Cisco IOS XRv",
		CPUMin: 1, CPUMax: 8,
		RAMMinMB: 3072, RAMMaxMB: 8192,
		NICMin: 1, NICMax: 128,
		SerialMin: 1, SerialMax: 4,
		NICSubtypes: []string{"E1000", "virtio"},
		nicName: func(n int) string {
			if n == 1 {
				return "MgmtEth0/0/CPU0/0"
			}
			return fmt.Sprintf("GigabitEthernet0/0/0/%d", n-2)
		},
		BootstrapDiskKind:  KindCDROM,
		BootstrapFilenames: []string{"iosxr_config.txt", "iosxr_config_admin.txt"},
		controllerForKind: map[DeviceKind]string{
			KindHardDisk: "ide",
			KindCDROM:    "ide",
		},
	}

	nxosv := &Platform{
		Name:   "Cisco NX-OSv",
		CPUMin: 1, CPUMax: 8,
		RAMMinMB: 2048, RAMMaxMB: 8192,
		NICMin: 1, NICMax: 65,
		SerialMin: 1, SerialMax: 2,
		NICSubtypes: []string{"E1000", "virtio"},
		nicName: func(n int) string {
			if n == 1 {
				return "mgmt0"
			}
			return fmt.Sprintf("Ethernet2/%d", n-1)
		},
		BootstrapDiskKind:  KindCDROM,
		BootstrapFilenames: []string{"nxos_config.txt"},
		controllerForKind: map[DeviceKind]string{
			KindHardDisk: "ide",
			KindCDROM:    "ide",
		},
	}

	return &Registry{
		generic: generic,
		byClass: map[string]*Platform{
			"com.cisco.csr1000v":    csr1000v,
			"com.cisco.iosv":        iosv,
			"com.cisco.ios-xrv":     iosxrv,
			"com.cisco.ios-xrv9000": iosxrv,
			"com.cisco.nx-osv":      nxosv,
		},
	}
}
