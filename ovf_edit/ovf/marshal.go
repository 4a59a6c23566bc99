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

package ovf

import (
	"encoding/xml"
	"io"
)

// The write-side structs mirror the read model with explicit namespace
// prefixes on attributes. Element tags stay unprefixed: the Envelope
// declares the OVF namespace as the default, which the children inherit.

type xEnvelope struct {
	XMLName    xml.Name `xml:"http://schemas.dmtf.org/ovf/envelope/1 Envelope"`
	XMLNSCIM   string   `xml:"xmlns:cim,attr"`
	XMLNSOVF   string   `xml:"xmlns:ovf,attr"`
	XMLNSRASD  string   `xml:"xmlns:rasd,attr"`
	XMLNSSASD  string   `xml:"xmlns:sasd,attr"`
	XMLNSEPASD string   `xml:"xmlns:epasd,attr"`
	XMLNSVSSD  string   `xml:"xmlns:vssd,attr"`
	XMLNSXSI   string   `xml:"xmlns:xsi,attr"`
	Version    string   `xml:"ovf:version,attr,omitempty"`
	Lang       string   `xml:"xml:lang,attr,omitempty"`

	References []xFile `xml:"References>File"`

	Disk             *xDiskSection             `xml:"DiskSection"`
	Network          *xNetworkSection          `xml:"NetworkSection"`
	DeploymentOption *xDeploymentOptionSection `xml:"DeploymentOptionSection"`

	VirtualSystem *xVirtualSystem `xml:"VirtualSystem"`
}

type xFile struct {
	ID          string  `xml:"ovf:id,attr"`
	Href        string  `xml:"ovf:href,attr"`
	Size        int64   `xml:"ovf:size,attr"`
	Compression *string `xml:"ovf:compression,attr"`
}

type xSection struct {
	Required *bool  `xml:"ovf:required,attr"`
	Info     string `xml:"Info"`
}

type xDiskSection struct {
	xSection

	Disks []xVirtualDiskDesc `xml:"Disk"`
}

type xVirtualDiskDesc struct {
	DiskID                  string  `xml:"ovf:diskId,attr"`
	FileRef                 *string `xml:"ovf:fileRef,attr"`
	Capacity                string  `xml:"ovf:capacity,attr"`
	CapacityAllocationUnits *string `xml:"ovf:capacityAllocationUnits,attr"`
	Format                  *string `xml:"ovf:format,attr"`
	PopulatedSize           *int64  `xml:"ovf:populatedSize,attr"`
	ParentRef               *string `xml:"ovf:parentRef,attr"`
}

type xNetworkSection struct {
	xSection

	Networks []xNetwork `xml:"Network"`
}

type xNetwork struct {
	Name string `xml:"ovf:name,attr"`

	Description string `xml:"Description"`
}

type xDeploymentOptionSection struct {
	xSection

	Configurations []xDeploymentOptionConfiguration `xml:"Configuration"`
}

type xDeploymentOptionConfiguration struct {
	ID      string `xml:"ovf:id,attr"`
	Default *bool  `xml:"ovf:default,attr"`

	Label       string `xml:"Label"`
	Description string `xml:"Description"`
}

type xVirtualSystem struct {
	ID   string  `xml:"ovf:id,attr"`
	Info string  `xml:"Info"`
	Name *string `xml:"Name"`

	Annotation      []xAnnotationSection      `xml:"AnnotationSection"`
	Product         []xProductSection         `xml:"ProductSection"`
	Eula            []xEulaSection            `xml:"EulaSection"`
	OperatingSystem []xOperatingSystemSection `xml:"OperatingSystemSection"`
	VirtualHardware []xVirtualHardwareSection `xml:"VirtualHardwareSection"`
}

type xAnnotationSection struct {
	xSection

	Annotation string `xml:"Annotation"`
}

type xEulaSection struct {
	xSection

	License string `xml:"License"`
}

type xProductSection struct {
	xSection

	Class    *string `xml:"ovf:class,attr"`
	Instance *string `xml:"ovf:instance,attr"`

	Product     string      `xml:"Product,omitempty"`
	Vendor      string      `xml:"Vendor,omitempty"`
	Version     string      `xml:"Version,omitempty"`
	FullVersion string      `xml:"FullVersion,omitempty"`
	ProductURL  string      `xml:"ProductUrl,omitempty"`
	VendorURL   string      `xml:"VendorUrl,omitempty"`
	AppURL      string      `xml:"AppUrl,omitempty"`
	Property    []xProperty `xml:"Property"`
}

type xProperty struct {
	Key              string  `xml:"ovf:key,attr"`
	Type             string  `xml:"ovf:type,attr"`
	Qualifiers       *string `xml:"ovf:qualifiers,attr"`
	UserConfigurable *bool   `xml:"ovf:userConfigurable,attr"`
	Default          *string `xml:"ovf:value,attr"`

	Label       *string `xml:"Label"`
	Description *string `xml:"Description"`

	Values []xPropertyConfigurationValue `xml:"Value"`
}

type xPropertyConfigurationValue struct {
	Value         string  `xml:"ovf:value,attr"`
	Configuration *string `xml:"ovf:configuration,attr"`
}

type xOperatingSystemSection struct {
	xSection

	ID      int16   `xml:"ovf:id,attr"`
	Version *string `xml:"ovf:version,attr"`
	OSType  *string `xml:"ovf:osType,attr"`

	Description *string `xml:"Description"`
}

type xVirtualHardwareSection struct {
	xSection

	ID        *string `xml:"ovf:id,attr"`
	Transport *string `xml:"ovf:transport,attr"`

	System *xVirtualSystemSettingData `xml:"System"`

	Items []Item `xml:"Item"`
}

type xVirtualSystemSettingData struct {
	ElementName             string  `xml:"vssd:ElementName"`
	InstanceID              string  `xml:"vssd:InstanceID"`
	VirtualSystemIdentifier *string `xml:"vssd:VirtualSystemIdentifier"`
	VirtualSystemType       *string `xml:"vssd:VirtualSystemType"`
}

// Marshal writes the descriptor as indented OVF XML with the canonical
// namespace declarations.
func Marshal(w io.Writer, e *Envelope) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(toWriteModel(e)); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func toWriteModel(e *Envelope) *xEnvelope {
	x := &xEnvelope{
		XMLNSCIM:   NSCIM,
		XMLNSOVF:   NSOVF,
		XMLNSRASD:  NSRASD,
		XMLNSSASD:  NSSASD,
		XMLNSEPASD: NSEPASD,
		XMLNSVSSD:  NSVSSD,
		XMLNSXSI:   NSXSI,
		Version:    e.Version,
		Lang:       e.Lang,
	}
	for _, f := range e.References {
		x.References = append(x.References, xFile(f))
	}
	if e.Disk != nil {
		x.Disk = &xDiskSection{xSection: toWriteSection(e.Disk.Section)}
		for _, d := range e.Disk.Disks {
			x.Disk.Disks = append(x.Disk.Disks, xVirtualDiskDesc(d))
		}
	}
	if e.Network != nil {
		x.Network = &xNetworkSection{xSection: toWriteSection(e.Network.Section)}
		for _, n := range e.Network.Networks {
			x.Network.Networks = append(x.Network.Networks, xNetwork(n))
		}
	}
	if e.DeploymentOption != nil {
		x.DeploymentOption = &xDeploymentOptionSection{
			xSection: toWriteSection(e.DeploymentOption.Section)}
		for _, c := range e.DeploymentOption.Configurations {
			x.DeploymentOption.Configurations = append(
				x.DeploymentOption.Configurations, xDeploymentOptionConfiguration(c))
		}
	}
	if e.VirtualSystem != nil {
		x.VirtualSystem = toWriteVirtualSystem(e.VirtualSystem)
	}
	return x
}

func toWriteSection(s Section) xSection {
	return xSection{Required: s.Required, Info: s.Info}
}

func toWriteVirtualSystem(vs *VirtualSystem) *xVirtualSystem {
	x := &xVirtualSystem{ID: vs.ID, Info: vs.Info, Name: vs.Name}
	for _, a := range vs.Annotation {
		x.Annotation = append(x.Annotation, xAnnotationSection{
			xSection: toWriteSection(a.Section), Annotation: a.Annotation})
	}
	for _, p := range vs.Product {
		x.Product = append(x.Product, toWriteProduct(p))
	}
	for _, eu := range vs.Eula {
		x.Eula = append(x.Eula, xEulaSection{
			xSection: toWriteSection(eu.Section), License: eu.License})
	}
	for _, os := range vs.OperatingSystem {
		x.OperatingSystem = append(x.OperatingSystem, xOperatingSystemSection{
			xSection: toWriteSection(os.Section),
			ID:       os.ID, Version: os.Version, OSType: os.OSType,
			Description: os.Description,
		})
	}
	for _, hw := range vs.VirtualHardware {
		xhw := xVirtualHardwareSection{
			xSection:  toWriteSection(hw.Section),
			ID:        hw.ID,
			Transport: hw.Transport,
		}
		if hw.System != nil {
			sys := xVirtualSystemSettingData(*hw.System)
			xhw.System = &sys
		}
		xhw.Items = append(xhw.Items, hw.Item...)
		xhw.Items = append(xhw.Items, hw.StorageItem...)
		xhw.Items = append(xhw.Items, hw.EthernetPortItem...)
		x.VirtualHardware = append(x.VirtualHardware, xhw)
	}
	return x
}

func toWriteProduct(p ProductSection) xProductSection {
	x := xProductSection{
		xSection: toWriteSection(p.Section),
		Class:    p.Class, Instance: p.Instance,
		Product: p.Product, Vendor: p.Vendor,
		Version: p.Version, FullVersion: p.FullVersion,
		ProductURL: p.ProductURL, VendorURL: p.VendorURL, AppURL: p.AppURL,
	}
	for _, prop := range p.Property {
		xp := xProperty{
			Key: prop.Key, Type: prop.Type,
			Qualifiers:       prop.Qualifiers,
			UserConfigurable: prop.UserConfigurable,
			Default:          prop.Default,
			Label:            prop.Label,
			Description:      prop.Description,
		}
		for _, v := range prop.Values {
			xp.Values = append(xp.Values, xPropertyConfigurationValue(v))
		}
		x.Property = append(x.Property, xp)
	}
	return x
}
