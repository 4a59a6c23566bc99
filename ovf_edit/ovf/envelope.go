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

// Package ovf models the parts of an OVF descriptor that the editor reads
// and rewrites: the file references, disk and network sections, deployment
// configurations (profiles), product metadata and the virtual hardware
// items. Parsing matches elements by local name so that any namespace
// prefix convention is accepted; writing emits the canonical prefixes.
package ovf

import (
	"encoding/xml"
	"io"
)

// Namespace URLs written into the descriptor root.
const (
	NSOVF   = "http://schemas.dmtf.org/ovf/envelope/1"
	NSCIM   = "http://schemas.dmtf.org/wbem/wscim/1/common"
	NSRASD  = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_ResourceAllocationSettingData"
	NSSASD  = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_StorageAllocationSettingData"
	NSEPASD = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_EthernetPortAllocationSettingData"
	NSVSSD  = "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_VirtualSystemSettingData"
	NSXSI   = "http://www.w3.org/2001/XMLSchema-instance"
)

// Envelope represents an OVF descriptor.
type Envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Version string   `xml:"version,attr"`
	Lang    string   `xml:"lang,attr"`

	References []File `xml:"References>File"`

	Disk             *DiskSection             `xml:"DiskSection"`
	Network          *NetworkSection          `xml:"NetworkSection"`
	DeploymentOption *DeploymentOptionSection `xml:"DeploymentOptionSection"`

	VirtualSystem *VirtualSystem `xml:"VirtualSystem"`
}

// VirtualSystem represents an OVF virtual system.
type VirtualSystem struct {
	ID   string  `xml:"id,attr"`
	Info string  `xml:"Info"`
	Name *string `xml:"Name"`

	Annotation      []AnnotationSection      `xml:"AnnotationSection"`
	Product         []ProductSection         `xml:"ProductSection"`
	Eula            []EulaSection            `xml:"EulaSection"`
	OperatingSystem []OperatingSystemSection `xml:"OperatingSystemSection"`
	VirtualHardware []VirtualHardwareSection `xml:"VirtualHardwareSection"`
}

// File represents a File element under References.
type File struct {
	ID          string  `xml:"id,attr"`
	Href        string  `xml:"href,attr"`
	Size        int64   `xml:"size,attr"`
	Compression *string `xml:"compression,attr"`
}

// Section is a base struct representing unnamed sections.
type Section struct {
	Required *bool  `xml:"required,attr"`
	Info     string `xml:"Info"`
}

// AnnotationSection is an annotation section.
type AnnotationSection struct {
	Section

	Annotation string `xml:"Annotation"`
}

// EulaSection represents a EULA section.
type EulaSection struct {
	Section

	License string `xml:"License"`
}

// ProductSection carries product metadata and environment properties.
type ProductSection struct {
	Section

	Class    *string `xml:"class,attr"`
	Instance *string `xml:"instance,attr"`

	Product     string     `xml:"Product"`
	Vendor      string     `xml:"Vendor"`
	Version     string     `xml:"Version"`
	FullVersion string     `xml:"FullVersion"`
	ProductURL  string     `xml:"ProductUrl"`
	VendorURL   string     `xml:"VendorUrl"`
	AppURL      string     `xml:"AppUrl"`
	Property    []Property `xml:"Property"`
}

// Property represents an environment property.
type Property struct {
	Key              string  `xml:"key,attr"`
	Type             string  `xml:"type,attr"`
	Qualifiers       *string `xml:"qualifiers,attr"`
	UserConfigurable *bool   `xml:"userConfigurable,attr"`
	Default          *string `xml:"value,attr"`

	Label       *string `xml:"Label"`
	Description *string `xml:"Description"`

	Values []PropertyConfigurationValue `xml:"Value"`
}

// PropertyConfigurationValue is a per-profile override of a property value.
type PropertyConfigurationValue struct {
	Value         string  `xml:"value,attr"`
	Configuration *string `xml:"configuration,attr"`
}

// NetworkSection represents the network section.
type NetworkSection struct {
	Section

	Networks []Network `xml:"Network"`
}

// Network represents a logical network.
type Network struct {
	Name string `xml:"name,attr"`

	Description string `xml:"Description"`
}

// DiskSection represents the disk section.
type DiskSection struct {
	Section

	Disks []VirtualDiskDesc `xml:"Disk"`
}

// VirtualDiskDesc represents a virtual disk description.
type VirtualDiskDesc struct {
	DiskID                  string  `xml:"diskId,attr"`
	FileRef                 *string `xml:"fileRef,attr"`
	Capacity                string  `xml:"capacity,attr"`
	CapacityAllocationUnits *string `xml:"capacityAllocationUnits,attr"`
	Format                  *string `xml:"format,attr"`
	PopulatedSize           *int64  `xml:"populatedSize,attr"`
	ParentRef               *string `xml:"parentRef,attr"`
}

// FileReference returns the id of the backing file, "" when the disk has
// no file reference.
func (d *VirtualDiskDesc) FileReference() string {
	if d.FileRef == nil {
		return ""
	}
	return *d.FileRef
}

// OperatingSystemSection represents the operating system section.
type OperatingSystemSection struct {
	Section

	ID      int16   `xml:"id,attr"`
	Version *string `xml:"version,attr"`
	OSType  *string `xml:"osType,attr"`

	Description *string `xml:"Description"`
}

// VirtualHardwareSection represents a virtual hardware section.
type VirtualHardwareSection struct {
	Section

	ID        *string `xml:"id,attr"`
	Transport *string `xml:"transport,attr"`

	System *VirtualSystemSettingData `xml:"System"`

	Item             []Item `xml:"Item"`
	StorageItem      []Item `xml:"StorageItem"`
	EthernetPortItem []Item `xml:"EthernetPortItem"`
}

// AllItems returns pointers to every hardware item of the section, in the
// order Item, StorageItem, EthernetPortItem.
func (s *VirtualHardwareSection) AllItems() []*Item {
	items := make([]*Item, 0, len(s.Item)+len(s.StorageItem)+len(s.EthernetPortItem))
	for i := range s.Item {
		items = append(items, &s.Item[i])
	}
	for i := range s.StorageItem {
		items = append(items, &s.StorageItem[i])
	}
	for i := range s.EthernetPortItem {
		items = append(items, &s.EthernetPortItem[i])
	}
	return items
}

// SetItems replaces the section's hardware items, routing each to the slice
// matching its Tag.
func (s *VirtualHardwareSection) SetItems(items []Item) {
	s.Item = s.Item[:0]
	s.StorageItem = s.StorageItem[:0]
	s.EthernetPortItem = s.EthernetPortItem[:0]
	for _, it := range items {
		switch it.Tag {
		case TagStorageItem:
			s.StorageItem = append(s.StorageItem, it)
		case TagEthernetPortItem:
			s.EthernetPortItem = append(s.EthernetPortItem, it)
		default:
			s.Item = append(s.Item, it)
		}
	}
}

// VirtualSystemSettingData represents the System element of a virtual
// hardware section.
type VirtualSystemSettingData struct {
	ElementName             string  `xml:"ElementName"`
	InstanceID              string  `xml:"InstanceID"`
	VirtualSystemIdentifier *string `xml:"VirtualSystemIdentifier"`
	VirtualSystemType       *string `xml:"VirtualSystemType"`
}

// DeploymentOptionSection declares the named configuration profiles.
type DeploymentOptionSection struct {
	Section

	Configurations []DeploymentOptionConfiguration `xml:"Configuration"`
}

// DeploymentOptionConfiguration is one declared profile.
type DeploymentOptionConfiguration struct {
	ID      string `xml:"id,attr"`
	Default *bool  `xml:"default,attr"`

	Label       string `xml:"Label"`
	Description string `xml:"Description"`
}

// Unmarshal parses an OVF descriptor.
func Unmarshal(r io.Reader) (*Envelope, error) {
	var e Envelope
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}
