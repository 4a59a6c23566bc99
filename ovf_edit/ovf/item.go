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
	"fmt"
	"sort"
	"strings"
)

// Hardware item element tags.
const (
	TagItem             = "Item"
	TagStorageItem      = "StorageItem"
	TagEthernetPortItem = "EthernetPortItem"
)

// childPrefix maps an item tag to the namespace prefix of its setting-data
// children.
var childPrefix = map[string]string{
	TagItem:             "rasd",
	TagStorageItem:      "sasd",
	TagEthernetPortItem: "epasd",
}

// knownChildNames is the closed set of CIM setting-data child elements the
// editor understands. Everything else is preserved verbatim.
// Union of CIM_ResourceAllocationSettingData, CIM_StorageAllocationSettingData
// and CIM_EthernetPortAllocationSettingData local names.
var knownChildNames = map[string]bool{
	"Access": true, "Address": true, "AddressOnParent": true,
	"AllocationUnits": true, "AutomaticAllocation": true,
	"AutomaticDeallocation": true, "Caption": true, "ChangeableType": true,
	"ConfigurationName": true, "Connection": true, "ConsumerVisibility": true,
	"DesiredVLANEndpointMode": true, "Description": true, "ElementName": true,
	"Generation": true, "HostExtentName": true, "HostExtentNameFormat": true,
	"HostExtentNameNamespace": true, "HostExtentStartingAddress": true,
	"HostResource": true, "HostResourceBlockSize": true, "InstanceID": true,
	"Limit": true, "MappingBehavior": true, "OtherEndpointMode": true,
	"OtherResourceType": true, "Parent": true, "PoolID": true,
	"Reservation": true, "ResourceSubType": true, "ResourceType": true,
	"VirtualQuantity": true, "VirtualQuantityUnits": true, "Weight": true,
}

// IsKnownChildName reports whether name is a setting-data child element the
// editor models as a property rather than an opaque blob.
func IsKnownChildName(name string) bool { return knownChildNames[name] }

// Attr is a plain name/value attribute with its namespace prefix stripped.
type Attr struct {
	Name  string
	Value string
}

// Child is one child element of a hardware item. Known setting-data
// children carry Name/Value/Attrs; unrecognized children keep their full
// token stream in Foreign and are re-emitted untouched.
type Child struct {
	Name  string
	Value string
	Attrs []Attr

	Foreign []xml.Token
}

// IsForeign reports whether the child is an opaque preserved element.
func (c Child) IsForeign() bool { return len(c.Foreign) > 0 }

// SerializedForm returns a stable textual rendering of a foreign child,
// used to content-address it as an item property.
func (c Child) SerializedForm() string {
	var b strings.Builder
	for _, tok := range c.Foreign {
		switch t := tok.(type) {
		case xml.StartElement:
			b.WriteString("<" + qualified(t.Name))
			attrs := make([]string, 0, len(t.Attr))
			for _, a := range t.Attr {
				attrs = append(attrs, fmt.Sprintf(" %s=%q", qualified(a.Name), a.Value))
			}
			sort.Strings(attrs)
			for _, a := range attrs {
				b.WriteString(a)
			}
			b.WriteString(">")
		case xml.EndElement:
			b.WriteString("</" + qualified(t.Name) + ">")
		case xml.CharData:
			b.WriteString(strings.TrimSpace(string(t)))
		}
	}
	return b.String()
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Item is one serialized hardware item element. An item qualified by a
// profile membership carries a non-empty Configuration; an unqualified item
// applies to the default profile.
type Item struct {
	Tag           string
	Configuration string
	Attrs         []Attr
	Children      []Child
}

// ChildValue returns the text of the first child with the given local name.
func (it *Item) ChildValue(name string) (string, bool) {
	for _, c := range it.Children {
		if !c.IsForeign() && c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// UnmarshalXML decodes an Item, StorageItem or EthernetPortItem element,
// preserving unrecognized children verbatim.
func (it *Item) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	it.Tag = start.Name.Local
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		if a.Name.Local == "configuration" {
			it.Configuration = a.Value
			continue
		}
		it.Attrs = append(it.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if knownChildNames[t.Name.Local] {
				child, err := decodeKnownChild(d, t)
				if err != nil {
					return err
				}
				it.Children = append(it.Children, child)
			} else {
				child, err := captureForeign(d, t)
				if err != nil {
					return err
				}
				it.Children = append(it.Children, child)
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeKnownChild(d *xml.Decoder, start xml.StartElement) (Child, error) {
	child := Child{Name: start.Name.Local}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		child.Attrs = append(child.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
	}
	var text struct {
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&text, &start); err != nil {
		return child, err
	}
	child.Value = strings.TrimSpace(text.Value)
	return child, nil
}

// captureForeign copies the full token stream of an unrecognized child
// element, from its start tag through its matching end tag.
func captureForeign(d *xml.Decoder, start xml.StartElement) (Child, error) {
	clean := start.Copy()
	attrs := clean.Attr[:0]
	for _, a := range clean.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrs = append(attrs, a)
	}
	clean.Attr = attrs

	tokens := []xml.Token{clean}
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return Child{}, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
		tokens = append(tokens, xml.CopyToken(tok))
	}
	return Child{Foreign: tokens}, nil
}

// MarshalXML writes the item with its canonical element tag, known children
// in the schema-mandated alphabetical order and foreign children replayed
// after them in their original order.
func (it Item) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	tag := it.Tag
	if tag == "" {
		tag = TagItem
	}
	start := xml.StartElement{Name: xml.Name{Local: tag}}
	if it.Configuration != "" {
		start.Attr = append(start.Attr, xml.Attr{
			Name: xml.Name{Local: "ovf:configuration"}, Value: it.Configuration})
	}
	for _, a := range it.Attrs {
		start.Attr = append(start.Attr, xml.Attr{
			Name: xml.Name{Local: "ovf:" + a.Name}, Value: a.Value})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	prefix := childPrefix[tag]
	known := make([]Child, 0, len(it.Children))
	var foreign []Child
	for _, c := range it.Children {
		if c.IsForeign() {
			foreign = append(foreign, c)
		} else {
			known = append(known, c)
		}
	}
	sort.SliceStable(known, func(i, j int) bool { return known[i].Name < known[j].Name })

	for _, c := range known {
		childStart := xml.StartElement{Name: xml.Name{Local: prefix + ":" + c.Name}}
		for _, a := range c.Attrs {
			childStart.Attr = append(childStart.Attr, xml.Attr{
				Name: xml.Name{Local: a.Name}, Value: a.Value})
		}
		if err := e.EncodeToken(childStart); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.CharData(c.Value)); err != nil {
			return err
		}
		if err := e.EncodeToken(childStart.End()); err != nil {
			return err
		}
	}
	for _, c := range foreign {
		for _, tok := range c.Foreign {
			if err := e.EncodeToken(tok); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(start.End())
}
