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

// Package inspector renders a read-only summary of an OVF descriptor.
// It deliberately parses with an independent schema implementation so
// that what the summary shows is what a deployment target would see,
// not what the editing model believes it wrote.
package inspector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vmware/govmomi/ovf"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

// Summary is the digest of a parsed descriptor.
type Summary struct {
	Product  string
	Vendor   string
	Version  string
	SystemID string

	Files      []FileSummary
	Disks      []DiskSummary
	Networks   []string
	Profiles   []ProfileSummary
	Properties []PropertySummary
}

// FileSummary describes one package file reference.
type FileSummary struct {
	ID          string
	Href        string
	SizeBytes   int64
	Compression string
}

// DiskSummary describes one virtual disk.
type DiskSummary struct {
	DiskID        string
	FileRef       string
	CapacityBytes int64
}

// PropertySummary describes one user-settable environment property.
type PropertySummary struct {
	Key    string
	Value  string
	Label  string
	Masked bool
}

// ProfileSummary describes one deployment configuration with its
// resolved CPU and memory allocation.
type ProfileSummary struct {
	ID          string
	Label       string
	Default     bool
	CPUs        int64
	MemoryBytes int64
}

// Inspect parses descriptor content and builds its summary.
func Inspect(content []byte) (*Summary, error) {
	env, err := ovf.Unmarshal(bytes.NewReader(content))
	if err != nil {
		return nil, errs.InvalidInputf("cannot parse OVF descriptor: %v", err)
	}
	s := &Summary{}

	for _, f := range env.References {
		fs := FileSummary{ID: f.ID, Href: f.Href, SizeBytes: int64(f.Size)}
		if f.Compression != nil {
			fs.Compression = *f.Compression
		}
		s.Files = append(s.Files, fs)
	}

	if env.Disk != nil {
		for _, d := range env.Disk.Disks {
			ds := DiskSummary{DiskID: d.DiskID}
			if d.FileRef != nil {
				ds.FileRef = *d.FileRef
			}
			units := ""
			if d.CapacityAllocationUnits != nil {
				units = *d.CapacityAllocationUnits
			}
			if capacity, err := CapacityInBytes(d.Capacity, units); err == nil {
				ds.CapacityBytes = capacity
			}
			s.Disks = append(s.Disks, ds)
		}
	}

	if env.Network != nil {
		for _, n := range env.Network.Networks {
			s.Networks = append(s.Networks, n.Name)
		}
	}

	if env.VirtualSystem != nil {
		s.SystemID = env.VirtualSystem.ID
		for i, p := range env.VirtualSystem.Product {
			if i == 0 {
				s.Product, s.Vendor, s.Version = p.Product, p.Vendor, p.Version
			}
			for _, prop := range p.Property {
				ps := PropertySummary{Key: prop.Key}
				if prop.Default != nil {
					ps.Value = *prop.Default
				}
				if prop.Label != nil {
					ps.Label = *prop.Label
				}
				if prop.Password != nil && *prop.Password {
					ps.Masked = true
					ps.Value = strings.Repeat("*", len(ps.Value))
				}
				s.Properties = append(s.Properties, ps)
			}
		}
		s.Profiles = profileSummaries(env)
	}
	return s, nil
}

// profileSummaries resolves CPU and memory per deployment configuration.
// An unqualified hardware element applies to every configuration unless a
// qualified one overrides it.
func profileSummaries(env *ovf.Envelope) []ProfileSummary {
	ids := []string{""}
	labels := map[string]string{}
	defaults := map[string]bool{}
	if env.DeploymentOption != nil {
		ids = ids[:0]
		for _, c := range env.DeploymentOption.Configuration {
			ids = append(ids, c.ID)
			labels[c.ID] = c.Label
			if c.Default != nil {
				defaults[c.ID] = *c.Default
			}
		}
	}

	var out []ProfileSummary
	for _, id := range ids {
		ps := ProfileSummary{ID: id, Label: labels[id], Default: defaults[id]}
		for _, hw := range env.VirtualSystem.VirtualHardware {
			for i := range hw.Item {
				item := &hw.Item[i]
				if item.ResourceType == nil || !itemApplies(item.Configuration, id) {
					continue
				}
				quantity := int64(0)
				if item.VirtualQuantity != nil {
					quantity = int64(*item.VirtualQuantity)
				}
				switch *item.ResourceType {
				case 3:
					ps.CPUs = quantity
				case 4:
					units := "byte * 2^20"
					if item.AllocationUnits != nil && *item.AllocationUnits != "" {
						units = *item.AllocationUnits
					}
					if b, err := CapacityInBytes(fmt.Sprint(quantity), units); err == nil {
						ps.MemoryBytes = b
					}
				}
			}
		}
		out = append(out, ps)
	}
	return out
}

// itemApplies reports whether a hardware element qualified with
// configuration applies to profile id. Qualified elements win over
// unqualified ones because they are visited in document order and
// assignment overwrites.
func itemApplies(configuration *string, id string) bool {
	if configuration == nil || strings.TrimSpace(*configuration) == "" {
		return true
	}
	for _, c := range strings.Fields(*configuration) {
		if c == id {
			return true
		}
	}
	return false
}

// String renders the summary as the multi-line report shown to users.
func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product:  %s\n", orDash(s.Product))
	fmt.Fprintf(&sb, "Vendor:   %s\n", orDash(s.Vendor))
	fmt.Fprintf(&sb, "Version:  %s\n", orDash(s.Version))

	if len(s.Files) > 0 {
		sb.WriteString("\nFiles:\n")
		for _, f := range s.Files {
			compression := ""
			if f.Compression != "" && f.Compression != "identity" {
				compression = " [" + f.Compression + "]"
			}
			fmt.Fprintf(&sb, "  %-30s %10s%s\n", f.Href, humanize.IBytes(uint64(f.SizeBytes)), compression)
		}
	}
	if len(s.Disks) > 0 {
		sb.WriteString("\nDisks:\n")
		for _, d := range s.Disks {
			fmt.Fprintf(&sb, "  %-30s %10s (file %s)\n", d.DiskID, humanize.IBytes(uint64(d.CapacityBytes)), orDash(d.FileRef))
		}
	}
	if len(s.Networks) > 0 {
		sb.WriteString("\nNetworks:\n")
		for _, n := range s.Networks {
			fmt.Fprintf(&sb, "  %s\n", n)
		}
	}
	if len(s.Properties) > 0 {
		sb.WriteString("\nProperties:\n")
		for _, p := range s.Properties {
			label := p.Label
			if label == "" {
				label = p.Key
			}
			fmt.Fprintf(&sb, "  %-30s %q\n", label, p.Value)
		}
	}
	if len(s.Profiles) > 0 {
		sb.WriteString("\nConfiguration Profiles:\n")
		for _, p := range s.Profiles {
			name := p.ID
			if name == "" {
				name = "(default)"
			}
			marker := ""
			if p.Default {
				marker = " *"
			}
			fmt.Fprintf(&sb, "  %-20s %2d CPU(s), %s%s\n", name, p.CPUs, humanize.IBytes(uint64(p.MemoryBytes)), marker)
		}
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
