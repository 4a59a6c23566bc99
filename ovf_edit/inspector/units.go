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

package inspector

import (
	"fmt"
	"strconv"
	"strings"
)

// CapacityInBytes converts a quantity with OVF allocation units in the
// `byte * 2^x` programmatic-units form into bytes. Empty units mean
// plain bytes.
func CapacityInBytes(capacity string, allocationUnits string) (int64, error) {
	capacityRaw, err := strconv.ParseInt(capacity, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("can't parse capacity `%v`: %v", capacity, err)
	}
	power, err := allocationUnitPowerOfTwo(allocationUnits)
	if err != nil {
		return 0, err
	}
	return capacityRaw << power, nil
}

func allocationUnitPowerOfTwo(allocationUnits string) (int, error) {
	allocationUnits = strings.TrimSpace(strings.ToLower(allocationUnits))
	if allocationUnits == "" || allocationUnits == "byte" {
		return 0, nil
	}
	if !strings.HasPrefix(allocationUnits, "byte * 2^") {
		return 0, fmt.Errorf("can't parse `%v` allocation units", allocationUnits)
	}
	return strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(allocationUnits, "byte * 2^")))
}
