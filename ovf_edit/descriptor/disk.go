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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/utils/files"
	"github.com/ovfkit/ovf-edit-tools/common/utils/validation"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/hardware"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/platform"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/xref"
)

const vmdkStreamOptimizedFormat = "http://www.vmware.com/interfaces/specifications/vmdk.html#streamOptimized"

// AddDiskParams describe an add-disk operation. The target device can be
// pinned by any combination of the disk file name, an explicit file id,
// and a controller type plus "controller:device" address; conflicting
// criteria fail the operation.
type AddDiskParams struct {
	DiskPath       string `validate:"required"`
	Kind           string `validate:"required,oneof=harddisk cdrom"`
	ControllerType string
	Address        string
	SubType        string
	FileID         string
	DiskID         string
	Name           string
	Description    string
}

// AddDisk adds or replaces a disk file in the package, wiring up the
// File reference, the Disk entry (hard disks only), the owning
// controller and the device item.
func (d *Document) AddDisk(ctx context.Context, params AddDiskParams) error {
	if err := validate.Struct(params); err != nil {
		return errs.InvalidInputf("invalid disk parameters: %v", err)
	}
	if !files.Exists(params.DiskPath) {
		return errs.InvalidInputf("disk image %s does not exist", params.DiskPath)
	}

	ctype := ""
	if params.ControllerType != "" {
		var err error
		if ctype, err = validation.CanonicalizeControllerType(params.ControllerType); err != nil {
			return err
		}
	}
	if params.Address != "" {
		if ctype == "" {
			return errs.InvalidInputf("a controller type is required when a device address is given")
		}
		if err := validation.ValidateControllerAddress(ctype, params.Address); err != nil {
			return err
		}
	}

	target, err := d.resolveDiskTarget(filepath.Base(params.DiskPath), params.FileID, ctype, params.Address)
	if err != nil {
		return err
	}
	if target.File != nil && !d.confirm(fmt.Sprintf("%s already exists in the package. Replace it?", describeTarget(target))) {
		return errs.InvalidInputf("canceled: %s would be replaced", describeTarget(target))
	}
	if target.File == nil && target.Device != nil &&
		!d.confirm(fmt.Sprintf("%s will be remapped to %s. Continue?", describeTarget(target), filepath.Base(params.DiskPath))) {
		return errs.InvalidInputf("canceled: %s would be remapped", describeTarget(target))
	}

	href := filepath.Base(params.DiskPath)
	localPath := filepath.Join(d.dir, href)
	if !sameFile(params.DiskPath, localPath) {
		if err := files.Copy(params.DiskPath, localPath); err != nil {
			return err
		}
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	file := d.upsertFile(target.File, params.FileID, href, info.Size())

	diskID := ""
	if params.Kind == "harddisk" {
		capacity := int64(0)
		if d.disk != nil {
			if capacity, err = d.disk.Capacity(ctx, localPath); err != nil {
				return err
			}
		}
		disk := d.upsertDisk(target.Disk, params.DiskID, file.ID, href, capacity)
		diskID = disk.DiskID
	}

	ctrl := target.Controller
	if ctrl == nil {
		if ctrl, err = d.ensureController(ctype, params.Kind, params.Address, params.SubType); err != nil {
			return err
		}
	} else if params.SubType != "" {
		if err := ctrl.SetProperty(hardware.KeyResourceSubType, params.SubType, nil, true); err != nil {
			return err
		}
	}

	dev := target.Device
	if dev == nil {
		if dev, err = d.newDevice(params.Kind, ctrl, params.Address); err != nil {
			return err
		}
	}

	hostResource := xref.MakeFileHostResource(file.ID)
	if diskID != "" {
		hostResource = xref.MakeDiskHostResource(diskID)
	}
	if err := dev.SetProperty(hardware.KeyHostResource, hostResource, nil, true); err != nil {
		return err
	}
	if params.Name != "" {
		if err := dev.SetProperty(hardware.KeyElementName, params.Name, nil, true); err != nil {
			return err
		}
	}
	if params.Description != "" {
		if err := dev.SetProperty(hardware.KeyDescription, params.Description, nil, true); err != nil {
			return err
		}
	}
	d.logger.Info().Str("file", href).Str("kind", params.Kind).
		Str("device", dev.InstanceID()).Msg("added disk")
	return nil
}

// resolveDiskTarget runs the three independent searches and reconciles
// them, then cross-checks the settled tuple.
func (d *Document) resolveDiskTarget(filename, fileID, ctype, address string) (*xref.Target, error) {
	var found []*xref.Target

	t, err := d.resolver.SearchFromFilename(filename)
	if err != nil {
		return nil, err
	}
	found = append(found, t)

	if fileID != "" {
		if t, err = d.resolver.SearchFromFileID(fileID); err != nil {
			return nil, err
		}
		found = append(found, t)
	}
	if address != "" {
		if t, err = d.resolver.SearchFromController(ctype, address); err != nil {
			return nil, err
		}
		found = append(found, t)
	}

	target, err := xref.Combine(found...)
	if err != nil {
		return nil, err
	}
	if err := xref.ValidateElements(target, ctype); err != nil {
		return nil, err
	}
	return target, nil
}

func (d *Document) upsertFile(existing *ovf.File, fileID, href string, size int64) *ovf.File {
	if existing != nil {
		existing.Href = href
		existing.Size = size
		if fileID != "" {
			existing.ID = fileID
		}
		return existing
	}
	if fileID == "" {
		fileID = d.nextID("file", func(id string) bool { return d.resolver.FileByID(id) != nil })
	}
	d.env.References = append(d.env.References, ovf.File{ID: fileID, Href: href, Size: size})
	return &d.env.References[len(d.env.References)-1]
}

func (d *Document) upsertDisk(existing *ovf.VirtualDiskDesc, diskID, fileID, href string, capacityBytes int64) *ovf.VirtualDiskDesc {
	format := ""
	if strings.EqualFold(filepath.Ext(href), ".vmdk") {
		format = vmdkStreamOptimizedFormat
	}
	if existing != nil {
		existing.FileRef = &fileID
		if capacityBytes > 0 {
			existing.Capacity = strconv.FormatInt(capacityBytes, 10)
			existing.CapacityAllocationUnits = nil
		}
		if format != "" {
			existing.Format = &format
		}
		if diskID != "" {
			existing.DiskID = diskID
		}
		return existing
	}
	if d.env.Disk == nil {
		d.env.Disk = &ovf.DiskSection{
			Section: ovf.Section{Info: "Virtual disk information"},
		}
	}
	if diskID == "" {
		diskID = d.nextID("vmdisk", func(id string) bool { return d.resolver.DiskByID(id) != nil })
	}
	disk := ovf.VirtualDiskDesc{
		DiskID:  diskID,
		FileRef: &fileID,
	}
	if capacityBytes > 0 {
		disk.Capacity = strconv.FormatInt(capacityBytes, 10)
	}
	if format != "" {
		disk.Format = &format
	}
	d.env.Disk.Disks = append(d.env.Disk.Disks, disk)
	return &d.env.Disk.Disks[len(d.env.Disk.Disks)-1]
}

// nextID generates "prefixN" ids, skipping ones the document already uses.
func (d *Document) nextID(prefix string, taken func(string) bool) string {
	for n := 1; ; n++ {
		id := prefix + strconv.Itoa(n)
		if !taken(id) {
			return id
		}
	}
}

// AddControllerParams describe an explicit add-controller operation.
type AddControllerParams struct {
	Type    string `validate:"required"`
	Address string
	SubType string

	Profiles []string
}

// AddController creates a new disk controller item.
func (d *Document) AddController(params AddControllerParams) (*hardware.Item, error) {
	if err := validate.Struct(params); err != nil {
		return nil, errs.InvalidInputf("invalid controller parameters: %v", err)
	}
	ctype, err := validation.CanonicalizeControllerType(params.Type)
	if err != nil {
		return nil, err
	}
	set, _, err := d.profileSet(params.Profiles)
	if err != nil {
		return nil, err
	}

	bus := ""
	if params.Address != "" {
		// The controller bound is shared with full device addresses, so
		// validate the bare bus number as "bus:0".
		if err := validation.ValidateControllerAddress(ctype, params.Address+":0"); err != nil {
			return nil, err
		}
		bus = params.Address
		existing, err := d.hw.FindItem(ctype, map[hardware.PropertyKey]string{hardware.KeyAddress: bus}, nil)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errs.InvalidInputf("a %s controller at address %s already exists (item %s)",
				ctype, bus, existing.InstanceID())
		}
	} else {
		siblings, err := d.hw.FindAllItems(ctype, nil, nil)
		if err != nil {
			return nil, err
		}
		bus = strconv.Itoa(len(siblings))
	}

	ctrl, err := d.hw.NewItem(ctype, set)
	if err != nil {
		return nil, err
	}
	if err := ctrl.SetProperty(hardware.KeyAddress, bus, nil, true); err != nil {
		return nil, err
	}
	if params.SubType != "" {
		if err := ctrl.SetProperty(hardware.KeyResourceSubType, params.SubType, nil, true); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

// ensureController finds a controller suitable for a new device of the
// given kind, creating one after confirmation when none fits.
func (d *Document) ensureController(ctype, kind, address, subType string) (*hardware.Item, error) {
	if ctype == "" {
		deviceKind := platform.KindHardDisk
		if kind == "cdrom" {
			deviceKind = platform.KindCDROM
		}
		ctype = d.platform.ControllerTypeForDevice(deviceKind)
	}

	if address != "" {
		bus := strings.SplitN(address, ":", 2)[0]
		ctrl, err := d.hw.FindItem(ctype, map[hardware.PropertyKey]string{hardware.KeyAddress: bus}, nil)
		if err != nil || ctrl != nil {
			return ctrl, err
		}
	} else {
		ctrls, err := d.hw.FindAllItems(ctype, nil, nil)
		if err != nil {
			return nil, err
		}
		if len(ctrls) > 0 {
			return ctrls[0], nil
		}
	}

	if !d.confirm(fmt.Sprintf("The package has no suitable %s controller. Create one?", ctype)) {
		return nil, errs.InvalidInputf("canceled: a new %s controller would be created", ctype)
	}
	params := AddControllerParams{Type: ctype, SubType: subType}
	if address != "" {
		params.Address = strings.SplitN(address, ":", 2)[0]
	}
	return d.AddController(params)
}

// newDevice fabricates the device item for a disk file and attaches it
// to the controller.
func (d *Document) newDevice(kind string, ctrl *hardware.Item, address string) (*hardware.Item, error) {
	dev, err := d.hw.NewItem(kind, nil)
	if err != nil {
		return nil, err
	}
	if err := dev.SetProperty(hardware.KeyParent, ctrl.InstanceID(), nil, true); err != nil {
		return nil, err
	}

	addressOnParent := ""
	if address != "" {
		addressOnParent = strings.SplitN(address, ":", 2)[1]
	} else {
		next, err := d.nextFreeAddressOnParent(ctrl)
		if err != nil {
			return nil, err
		}
		addressOnParent = strconv.Itoa(next)
	}
	if err := dev.SetProperty(hardware.KeyAddressOnParent, addressOnParent, nil, true); err != nil {
		return nil, err
	}
	if kind == "cdrom" {
		if err := dev.SetProperty(hardware.KeyAutomaticAllocation, "true", nil, true); err != nil {
			return nil, err
		}
	}
	return dev, nil
}

func (d *Document) nextFreeAddressOnParent(ctrl *hardware.Item) (int, error) {
	children, err := d.hw.FindAllItems("", map[hardware.PropertyKey]string{
		hardware.KeyParent: ctrl.InstanceID(),
	}, nil)
	if err != nil {
		return 0, err
	}
	max := -1
	for _, c := range children {
		if n, err := strconv.Atoi(c.GetValue(hardware.KeyAddressOnParent, nil)); err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}
