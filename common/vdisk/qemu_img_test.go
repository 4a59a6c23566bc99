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

package vdisk_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/vdisk"
	"github.com/ovfkit/ovf-edit-tools/mocks"
)

func writeTempImage(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func Test_Convert_InvokesQemuImgWithSubformat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "input.qcow2", []byte("image"))
	expectedOut := path[:len(path)-len(".qcow2")] + ".vmdk"

	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img",
		"convert", "-O", "vmdk", "-o", "subformat=streamOptimized", path, expectedOut).
		Return("", nil)

	client := vdisk.NewClient(executor)
	out, err := client.Convert(context.Background(), path, vdisk.FormatVMDK, "streamOptimized")
	assert.NoError(t, err)
	assert.Equal(t, expectedOut, out)
}

func Test_Convert_OmitsSubformatOptionWhenEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "input.vmdk", []byte("image"))
	expectedOut := path[:len(path)-len(".vmdk")] + ".raw"

	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img",
		"convert", "-O", "raw", path, expectedOut).
		Return("", nil)

	client := vdisk.NewClient(executor)
	out, err := client.Convert(context.Background(), path, vdisk.FormatRAW, "")
	assert.NoError(t, err)
	assert.Equal(t, expectedOut, out)
}

func Test_Convert_FailsWhenImageMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := vdisk.NewClient(mocks.NewMockShellExecutor(ctrl))
	_, err := client.Convert(context.Background(), "/nonexistent/disk.qcow2", vdisk.FormatVMDK, "")
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func Test_Info_ParsesQemuImgJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "disk.vmdk", []byte("image"))
	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img", "info", "--output=json", path).
		Return(`{"filename": "disk.vmdk", "format": "vmdk", "actual-size": 1024, "virtual-size": 10737418240}`, nil)

	client := vdisk.NewClient(executor)
	info, err := client.Info(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, vdisk.FormatVMDK, info.Format)
	assert.Equal(t, int64(1024), info.ActualSizeBytes)
	assert.Equal(t, int64(10737418240), info.VirtualSizeBytes)
}

func Test_Info_UnknownFormatMapsToFormatUnknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "disk.img", []byte("image"))
	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img", "info", "--output=json", path).
		Return(`{"format": "bochs"}`, nil)

	client := vdisk.NewClient(executor)
	info, err := client.Info(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, vdisk.FormatUnknown, info.Format)
}

func Test_Info_BadJSONIsHelperFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "disk.img", []byte("image"))
	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img", "info", "--output=json", path).
		Return("not json", nil)

	client := vdisk.NewClient(executor)
	_, err := client.Info(context.Background(), path)
	assert.Equal(t, errs.HelperFailed, errs.KindOf(err))
}

func Test_Capacity_ReturnsVirtualSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "disk.vmdk", []byte("image"))
	executor := mocks.NewMockShellExecutor(ctrl)
	executor.EXPECT().Exec(gomock.Any(), "qemu-img", "info", "--output=json", path).
		Return(`{"format": "vmdk", "virtual-size": 2147483648}`, nil)

	client := vdisk.NewClient(executor)
	capacity, err := client.Capacity(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, int64(2147483648), capacity)
}

func Test_Checksum_ComputesKnownDigests(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	path := writeTempImage(t, "file.txt", []byte("abc"))
	client := vdisk.NewClient(mocks.NewMockShellExecutor(ctrl))

	sha1sum, err := client.Checksum(path, "sha1")
	assert.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", sha1sum)

	sha256sum, err := client.Checksum(path, "sha256")
	assert.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha256sum)
}

func Test_Checksum_RejectsUnknownAlgorithm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := vdisk.NewClient(mocks.NewMockShellExecutor(ctrl))
	_, err := client.Checksum("irrelevant", "md5")
	assert.Equal(t, errs.ValueUnsupported, errs.KindOf(err))
}
