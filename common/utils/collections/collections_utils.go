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

package collections

import (
	"sort"
	"strconv"
	"strings"
)

// NaturalLess compares two strings treating runs of digits as numbers, so
// "disk2" sorts before "disk10". Hardware InstanceIDs are usually plain
// integers but the document does not guarantee it.
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		aRun, aRest, aNum := splitRun(a)
		bRun, bRest, bNum := splitRun(b)
		if aNum && bNum {
			ai, _ := strconv.Atoi(aRun)
			bi, _ := strconv.Atoi(bRun)
			if ai != bi {
				return ai < bi
			}
		} else if aRun != bRun {
			return aRun < bRun
		}
		a, b = aRest, bRest
	}
	return a == "" && b != ""
}

// splitRun splits s into its leading digit or non-digit run and the rest.
func splitRun(s string) (run, rest string, numeric bool) {
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	numeric = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == numeric {
		i++
	}
	return s[:i], s[i:], numeric
}

// SortNatural sorts strings in natural order in place.
func SortNatural(values []string) {
	sort.SliceStable(values, func(i, j int) bool { return NaturalLess(values[i], values[j]) })
}

// GetKeys returns all keys of the map.
func GetKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// ContainsString reports whether values contains s.
func ContainsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// JoinNonEmpty joins the non-empty members of values with sep.
func JoinNonEmpty(values []string, sep string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}
