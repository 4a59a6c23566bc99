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

import "fmt"

// KeyKind distinguishes where a property lives on the serialized element.
type KeyKind int

const (
	// KindChildText is the text content of a named child element.
	KindChildText KeyKind = iota

	// KindAttribute is an attribute on the item element itself.
	KindAttribute

	// KindChildAttribute is an attribute on a named child element.
	KindChildAttribute

	// KindOpaque is a child element outside the known schema, tracked by
	// its serialized form so it round-trips untouched.
	KindOpaque
)

// PropertyKey identifies one property slot of an Item. Keys are comparable
// and used directly as map keys.
type PropertyKey struct {
	Kind KeyKind

	// Name is the child element name for KindChildText, the attribute
	// name for KindAttribute and KindChildAttribute, and the serialized
	// form for KindOpaque.
	Name string

	// Parent is the enclosing child element name for KindChildAttribute.
	Parent string
}

// ChildKey keys the text content of the named child element.
func ChildKey(name string) PropertyKey {
	return PropertyKey{Kind: KindChildText, Name: name}
}

// AttributeKey keys an attribute on the item element.
func AttributeKey(name string) PropertyKey {
	return PropertyKey{Kind: KindAttribute, Name: name}
}

// ChildAttributeKey keys an attribute on the named child element.
func ChildAttributeKey(parent, name string) PropertyKey {
	return PropertyKey{Kind: KindChildAttribute, Name: name, Parent: parent}
}

// OpaqueKey keys an unrecognized child element by its serialized form.
func OpaqueKey(serialized string) PropertyKey {
	return PropertyKey{Kind: KindOpaque, Name: serialized}
}

func (k PropertyKey) String() string {
	switch k.Kind {
	case KindAttribute:
		return "@" + k.Name
	case KindChildAttribute:
		return fmt.Sprintf("%s/@%s", k.Parent, k.Name)
	case KindOpaque:
		return "opaque:" + k.Name
	default:
		return k.Name
	}
}

// less orders keys deterministically for iteration.
func (k PropertyKey) less(o PropertyKey) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if k.Parent != o.Parent {
		return k.Parent < o.Parent
	}
	return k.Name < o.Name
}

// Well-known property slots of the CIM allocation setting data schema.
var (
	KeyAddress             = ChildKey("Address")
	KeyAddressOnParent     = ChildKey("AddressOnParent")
	KeyAllocationUnits     = ChildKey("AllocationUnits")
	KeyAutomaticAllocation = ChildKey("AutomaticAllocation")
	KeyConnection          = ChildKey("Connection")
	KeyDescription         = ChildKey("Description")
	KeyElementName         = ChildKey("ElementName")
	KeyHostResource        = ChildKey("HostResource")
	KeyInstanceID          = ChildKey("InstanceID")
	KeyParent              = ChildKey("Parent")
	KeyResourceSubType     = ChildKey("ResourceSubType")
	KeyResourceType        = ChildKey("ResourceType")
	KeyVirtualQuantity     = ChildKey("VirtualQuantity")

	KeyRequired = AttributeKey("required")
)

// Placeholder tokens that may be embedded in string-valued properties and
// are substituted with the live value of the referenced slot when read.
const (
	PlaceholderVirtualQuantity = "{virtual-quantity}"
	PlaceholderResourceSubType = "{resource-subtype}"
	PlaceholderElementName     = "{element-name}"
	PlaceholderConnection      = "{connection}"
)
