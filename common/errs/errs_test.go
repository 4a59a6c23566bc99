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

package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_KindOf_ReturnsKindOfTypedErrors(t *testing.T) {
	assert.Equal(t, InvalidInput, KindOf(InvalidInputf("bad value")))
	assert.Equal(t, Internal, KindOf(Internalf("broken invariant")))
	assert.Equal(t, ValueMismatch, KindOf(Mismatchf("disk id", "a", "b")))
	assert.Equal(t, ValueTooLow, KindOf(TooLow("CPUs", 0, 1)))
	assert.Equal(t, ValueTooHigh, KindOf(TooHigh("CPUs", 9, 8)))
	assert.Equal(t, ValueUnsupported, KindOf(Unsupported("type", "x", []string{"a", "b"})))
}

func Test_KindOf_SurvivesWrappingWithErrorf(t *testing.T) {
	err := fmt.Errorf("while cloning item 4: %w", Internalf("no inheritable value"))
	assert.Equal(t, Internal, KindOf(err))
}

func Test_KindOf_ReturnsEmptyForUntypedErrors(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func Test_Wrap_AttachesKindAndPreservesCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(HelperFailed, cause)
	assert.Equal(t, HelperFailed, KindOf(err))
	assert.True(t, errors.Is(err, cause))
}

func Test_Wrap_NilYieldsNil(t *testing.T) {
	assert.Nil(t, Wrap(HelperFailed, nil))
}

func Test_IsUsage_TrueForUserInputKinds(t *testing.T) {
	assert.True(t, IsUsage(InvalidInputf("bad")))
	assert.True(t, IsUsage(Unsupported("type", "x", nil)))
	assert.True(t, IsUsage(TooLow("memory MiB", 1, 192)))
	assert.True(t, IsUsage(TooHigh("memory MiB", 99999, 3072)))
	assert.True(t, IsUsage(Mismatchf("file", "a.vmdk", "b.vmdk")))
}

func Test_IsUsage_FalseForRuntimeKinds(t *testing.T) {
	assert.False(t, IsUsage(Internalf("bad model")))
	assert.False(t, IsUsage(Errf(HelperNotFound, "qemu-img missing")))
	assert.False(t, IsUsage(errors.New("plain")))
	assert.False(t, IsUsage(nil))
}

func Test_Unsupported_MessageListsAcceptedValues(t *testing.T) {
	err := Unsupported("controller type", "usb", []string{"ide", "sata", "scsi"})
	assert.Contains(t, err.Error(), "ide, sata, scsi")
	assert.Equal(t, []string{"ide", "sata", "scsi"}, err.Accepted)
}

func Test_BoundErrors_CarryLabelValueAndBound(t *testing.T) {
	err := TooHigh("Cisco CSR1000V CPUs", 16, 8)
	assert.Equal(t, "Cisco CSR1000V CPUs", err.Label)
	assert.Equal(t, 16, err.Value)
	assert.Equal(t, 8, err.Bound)
}
