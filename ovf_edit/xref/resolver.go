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

// Package xref locates and cross-validates the File, Disk, controller and
// device entities a disk-level edit refers to. The resolver never creates
// or mutates entities; it only discovers them and checks that the
// relationships between them hold.
package xref

import (
	"fmt"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/hardware"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
)

// HostResource reference prefixes defined by the OVF standard.
const (
	HostResourceDiskPrefix = "ovf:/disk/"
	HostResourceFilePrefix = "ovf:/file/"
)

// MakeDiskHostResource renders a HostResource referencing a Disk.
func MakeDiskHostResource(diskID string) string {
	return HostResourceDiskPrefix + diskID
}

// MakeFileHostResource renders a HostResource referencing a File.
func MakeFileHostResource(fileID string) string {
	return HostResourceFilePrefix + fileID
}

// ParseHostResource splits a HostResource into its referenced disk or
// file id. Legacy references omitting the ovf: scheme are accepted.
// Exactly one of the two returns is non-empty for a well-formed
// reference; both are empty when the value uses neither prefix.
func ParseHostResource(v string) (diskID, fileID string) {
	for _, p := range []string{HostResourceDiskPrefix, "/disk/"} {
		if strings.HasPrefix(v, p) {
			return strings.TrimPrefix(v, p), ""
		}
	}
	for _, p := range []string{HostResourceFilePrefix, "/file/"} {
		if strings.HasPrefix(v, p) {
			return "", strings.TrimPrefix(v, p)
		}
	}
	return "", ""
}

// Target is one partial or complete (File, Disk, controller, device)
// tuple. Any member may be nil when the criterion that produced the
// tuple could not determine it.
type Target struct {
	File       *ovf.File
	Disk       *ovf.VirtualDiskDesc
	Controller *hardware.Item
	Device     *hardware.Item
}

// Resolver searches a parsed descriptor for cross-referenced entities.
type Resolver struct {
	env *ovf.Envelope
	hw  *hardware.Hardware
}

func NewResolver(env *ovf.Envelope, hw *hardware.Hardware) *Resolver {
	return &Resolver{env: env, hw: hw}
}

// FileByHref returns the File whose href matches, or nil.
func (r *Resolver) FileByHref(href string) *ovf.File {
	for i := range r.env.References {
		if r.env.References[i].Href == href {
			return &r.env.References[i]
		}
	}
	return nil
}

// FileByID returns the File with the given ovf:id, or nil.
func (r *Resolver) FileByID(id string) *ovf.File {
	for i := range r.env.References {
		if r.env.References[i].ID == id {
			return &r.env.References[i]
		}
	}
	return nil
}

// DiskByFileRef returns the Disk backed by the given file id, or nil.
func (r *Resolver) DiskByFileRef(fileID string) *ovf.VirtualDiskDesc {
	if r.env.Disk == nil {
		return nil
	}
	for i := range r.env.Disk.Disks {
		if r.env.Disk.Disks[i].FileReference() == fileID {
			return &r.env.Disk.Disks[i]
		}
	}
	return nil
}

// DiskByID returns the Disk with the given ovf:diskId, or nil.
func (r *Resolver) DiskByID(diskID string) *ovf.VirtualDiskDesc {
	if r.env.Disk == nil {
		return nil
	}
	for i := range r.env.Disk.Disks {
		if r.env.Disk.Disks[i].DiskID == diskID {
			return &r.env.Disk.Disks[i]
		}
	}
	return nil
}

// deviceByHostResource finds the item whose HostResource references the
// given disk or file.
func (r *Resolver) deviceByHostResource(diskID, fileID string) (*hardware.Item, error) {
	all, err := r.hw.FindAllItems("", nil, nil)
	if err != nil {
		return nil, err
	}
	for _, it := range all {
		d, f := ParseHostResource(it.GetValue(hardware.KeyHostResource, nil))
		if (diskID != "" && d == diskID) || (fileID != "" && f == fileID) {
			return it, nil
		}
	}
	return nil, nil
}

// parentController resolves a device's Parent reference. A device with a
// dangling parent reference means the descriptor is malformed.
func (r *Resolver) parentController(device *hardware.Item) (*hardware.Item, error) {
	parent := device.GetValue(hardware.KeyParent, nil)
	if parent == "" {
		return nil, errs.Internalf("device item %s has no Parent controller reference", device.InstanceID())
	}
	ctrl := r.hw.Item(parent)
	if ctrl == nil {
		return nil, errs.Internalf("device item %s references parent controller %s which does not exist",
			device.InstanceID(), parent)
	}
	return ctrl, nil
}

// completeFromFile walks from File through Disk and device to controller, leaving any
// member it cannot reach nil.
func (r *Resolver) completeFromFile(file *ovf.File) (*Target, error) {
	t := &Target{File: file}
	if file == nil {
		return t, nil
	}
	t.Disk = r.DiskByFileRef(file.ID)

	diskID, fileID := "", file.ID
	if t.Disk != nil {
		diskID, fileID = t.Disk.DiskID, ""
	}
	device, err := r.deviceByHostResource(diskID, fileID)
	if err != nil {
		return nil, err
	}
	t.Device = device
	if device != nil {
		if t.Controller, err = r.parentController(device); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SearchFromFilename locates the tuple starting from a File href.
func (r *Resolver) SearchFromFilename(filename string) (*Target, error) {
	return r.completeFromFile(r.FileByHref(filename))
}

// SearchFromFileID locates the tuple starting from a File id.
func (r *Resolver) SearchFromFileID(fileID string) (*Target, error) {
	return r.completeFromFile(r.FileByID(fileID))
}

// SearchFromController locates the tuple starting from a controller type
// and a validated "controller:device" address.
func (r *Resolver) SearchFromController(controllerType, address string) (*Target, error) {
	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 {
		return nil, errs.InvalidInputf("device address %q is not in controller:device form", address)
	}
	t := &Target{}

	ctrl, err := r.hw.FindItem(controllerType,
		map[hardware.PropertyKey]string{hardware.KeyAddress: parts[0]}, nil)
	if err != nil {
		return nil, err
	}
	t.Controller = ctrl
	if ctrl == nil {
		return t, nil
	}

	device, err := r.hw.FindItem("", map[hardware.PropertyKey]string{
		hardware.KeyParent:          ctrl.InstanceID(),
		hardware.KeyAddressOnParent: parts[1],
	}, nil)
	if err != nil {
		return nil, err
	}
	t.Device = device
	if device == nil {
		return t, nil
	}

	diskID, fileID := ParseHostResource(device.GetValue(hardware.KeyHostResource, nil))
	if diskID != "" {
		t.Disk = r.DiskByID(diskID)
		if t.Disk != nil {
			t.File = r.FileByID(t.Disk.FileReference())
		}
	} else if fileID != "" {
		t.File = r.FileByID(fileID)
	}
	return t, nil
}

// Combine reconciles independently searched tuples member-wise. Two
// different non-nil entities at the same position mean the user's
// criteria disagree.
func Combine(targets ...*Target) (*Target, error) {
	out := &Target{}
	for _, t := range targets {
		if t == nil {
			continue
		}
		if t.File != nil {
			if out.File != nil && out.File != t.File {
				return nil, errs.Mismatchf("file named by search criteria",
					describeFile(out.File), describeFile(t.File))
			}
			out.File = t.File
		}
		if t.Disk != nil {
			if out.Disk != nil && out.Disk != t.Disk {
				return nil, errs.Mismatchf("disk named by search criteria",
					describeDisk(out.Disk), describeDisk(t.Disk))
			}
			out.Disk = t.Disk
		}
		if t.Controller != nil {
			if out.Controller != nil && out.Controller != t.Controller {
				return nil, errs.Mismatchf("controller named by search criteria",
					describeItem(out.Controller), describeItem(t.Controller))
			}
			out.Controller = t.Controller
		}
		if t.Device != nil {
			if out.Device != nil && out.Device != t.Device {
				return nil, errs.Mismatchf("device named by search criteria",
					describeItem(out.Device), describeItem(t.Device))
			}
			out.Device = t.Device
		}
	}
	return out, nil
}

// ValidateElements re-derives every pairwise relationship of the settled
// tuple and fails when any disagrees. It is the final integrity gate
// before a mutation touches the tuple. controllerType, when non-empty, is
// the type the caller expects the controller to have.
func ValidateElements(t *Target, controllerType string) error {
	if t.File != nil && t.Disk != nil && t.Disk.FileReference() != t.File.ID {
		return errs.Mismatchf(fmt.Sprintf("file backing disk %q", t.Disk.DiskID),
			t.Disk.FileReference(), t.File.ID)
	}
	if t.Device != nil {
		diskID, fileID := ParseHostResource(t.Device.GetValue(hardware.KeyHostResource, nil))
		if t.Disk != nil && diskID != t.Disk.DiskID {
			return errs.Mismatchf(fmt.Sprintf("disk referenced by device item %s", t.Device.InstanceID()),
				diskID, t.Disk.DiskID)
		}
		if t.Disk == nil && t.File != nil && fileID != t.File.ID {
			return errs.Mismatchf(fmt.Sprintf("file referenced by device item %s", t.Device.InstanceID()),
				fileID, t.File.ID)
		}
		if t.Controller != nil {
			parent := t.Device.GetValue(hardware.KeyParent, nil)
			if parent != t.Controller.InstanceID() {
				return errs.Mismatchf(fmt.Sprintf("parent controller of device item %s", t.Device.InstanceID()),
					parent, t.Controller.InstanceID())
			}
		}
	}
	if controllerType != "" && t.Controller != nil {
		actual := hardware.ResourceTypeName(t.Controller.ResourceTypeNumber())
		if actual != controllerType {
			return errs.Mismatchf("controller type", actual, controllerType)
		}
	}
	return nil
}

func describeFile(f *ovf.File) string {
	return fmt.Sprintf("file %q (id %s)", f.Href, f.ID)
}

func describeDisk(d *ovf.VirtualDiskDesc) string {
	return fmt.Sprintf("disk %q (file ref %s)", d.DiskID, d.FileReference())
}

func describeItem(it *hardware.Item) string {
	name := it.GetValue(hardware.KeyElementName, nil)
	return fmt.Sprintf("item %s (%q)", it.InstanceID(), name)
}
