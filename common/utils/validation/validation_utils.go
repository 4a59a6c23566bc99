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

// Package validation normalizes and validates user-supplied scalars before
// they reach the hardware model.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

var (
	deviceAddressRegexp = regexp.MustCompile(`^\d+:\d+$`)
	macColonRegexp      = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)
	macDottedRegexp     = regexp.MustCompile(`^([0-9a-fA-F]{4}\.){2}[0-9a-fA-F]{4}$`)
)

// canonicalEntry is one (pattern, canonical name) pair. Matching is
// case-insensitive and ignores spaces; the list is ordered so that longer
// variants win over their prefixes (E1000e before E1000).
type canonicalEntry struct {
	pattern   *regexp.Regexp
	canonical string
}

func newCanonicalEntry(pattern, canonical string) canonicalEntry {
	return canonicalEntry{
		pattern:   regexp.MustCompile("(?i)^" + pattern + "$"),
		canonical: canonical,
	}
}

var nicSubtypes = []canonicalEntry{
	newCanonicalEntry("e1000e", "E1000e"),
	newCanonicalEntry("e1000", "E1000"),
	newCanonicalEntry("pcnet32", "PCNet32"),
	newCanonicalEntry("virtio", "virtio"),
	newCanonicalEntry("vmxnet3", "VMXNET3"),
}

var controllerTypes = []canonicalEntry{
	newCanonicalEntry("ide", "ide"),
	newCanonicalEntry("sata", "sata"),
	newCanonicalEntry("scsi", "scsi"),
}

func canonicalize(label, value string, entries []canonicalEntry) (string, error) {
	stripped := strings.ReplaceAll(value, " ", "")
	for _, e := range entries {
		if e.pattern.MatchString(stripped) {
			return e.canonical, nil
		}
	}
	accepted := make([]string, len(entries))
	for i, e := range entries {
		accepted[i] = e.canonical
	}
	return "", errs.Unsupported(label, value, accepted)
}

// CanonicalizeNICSubtype maps a user-supplied NIC subtype to its canonical
// spelling. Unmatched input is an error, not a pass-through.
func CanonicalizeNICSubtype(value string) (string, error) {
	return canonicalize("NIC subtype", value, nicSubtypes)
}

// CanonicalizeControllerType maps a user-supplied controller type string to
// one of "ide", "sata", "scsi".
func CanonicalizeControllerType(value string) (string, error) {
	return canonicalize("controller type", value, controllerTypes)
}

// ValidateInt parses value as an integer.
func ValidateInt(label, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errs.InvalidInputf("%v value %q is not an integer", label, value)
	}
	return n, nil
}

// ValidateIntInRange checks min <= value <= max.
func ValidateIntInRange(label string, value, min, max int) error {
	if value < min {
		return errs.TooLow(label, value, min)
	}
	if value > max {
		return errs.TooHigh(label, value, max)
	}
	return nil
}

// ValidateStringNotEmpty returns an error stating label must be provided if
// value is the empty string.
func ValidateStringNotEmpty(value, label string) error {
	if value == "" {
		return errs.InvalidInputf("%v must be provided", label)
	}
	return nil
}

// ValidateDeviceAddress checks the "controller:device" address syntax.
func ValidateDeviceAddress(value string) (controller, device int, err error) {
	if !deviceAddressRegexp.MatchString(value) {
		return 0, 0, errs.InvalidInputf(
			"device address %q must be of the form controller:device, e.g. 1:0", value)
	}
	parts := strings.SplitN(value, ":", 2)
	controller, _ = strconv.Atoi(parts[0])
	device, _ = strconv.Atoi(parts[1])
	return controller, device, nil
}

// addressBounds holds per-bus controller and device number limits.
type addressBounds struct {
	maxController int
	maxDevice     int
}

var controllerAddressBounds = map[string]addressBounds{
	"ide":  {maxController: 1, maxDevice: 1},
	"sata": {maxController: 3, maxDevice: 29},
	"scsi": {maxController: 3, maxDevice: 15},
}

// ValidateControllerAddress validates a "controller:device" address against
// the bus-specific bounds of controllerType.
func ValidateControllerAddress(controllerType, value string) error {
	ctype, err := CanonicalizeControllerType(controllerType)
	if err != nil {
		return err
	}
	controller, device, err := ValidateDeviceAddress(value)
	if err != nil {
		return err
	}
	bounds := controllerAddressBounds[ctype]
	if err := ValidateIntInRange(
		fmt.Sprintf("%v controller number", ctype), controller, 0, bounds.maxController); err != nil {
		return err
	}
	return ValidateIntInRange(
		fmt.Sprintf("%v device number", ctype), device, 0, bounds.maxDevice)
}

// ValidateMACAddress accepts colon-separated ("00:11:22:33:44:55") and
// dotted ("0011.2233.4455") MAC address forms.
func ValidateMACAddress(value string) error {
	if macColonRegexp.MatchString(value) || macDottedRegexp.MatchString(value) {
		return nil
	}
	return errs.InvalidInputf("%q is not a valid MAC address", value)
}
