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

// Package vdisk wraps the external disk-image helper programs behind a
// narrow contract: convert an image, report its capacity, checksum its
// bytes. Any helper failure is fatal to the enclosing operation; callers
// never retry.
package vdisk

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/shell"
	"github.com/ovfkit/ovf-edit-tools/common/utils/files"
)

// Format is an enum type for representing VM disk encoding formats.
type Format string

const (
	// FormatUnknown means that qemu-img could not determine the file's format.
	FormatUnknown Format = "unknown"
	// FormatVMDK means that the file uses the vmdk file format.
	FormatVMDK Format = "vmdk"
	// FormatQCOW2 means that the file uses the qcow2 file format.
	FormatQCOW2 Format = "qcow2"
	// FormatRAW means that the file uses the raw file format.
	FormatRAW Format = "raw"
	// FormatVHDX means that the file uses the vhdx file format.
	FormatVHDX Format = "vhdx"
	// FormatVDI means that the file uses the vdi file format.
	FormatVDI Format = "vdi"
	// FormatISO is not a qemu-img format; bootstrap configuration disks use it.
	FormatISO Format = "iso"
)

var formats = map[string]Format{
	"vmdk":  FormatVMDK,
	"qcow2": FormatQCOW2,
	"raw":   FormatRAW,
	"vhdx":  FormatVHDX,
	"vdi":   FormatVDI,
}

// ImageInfo includes metadata returned by `qemu-img info`.
type ImageInfo struct {
	Format           Format
	ActualSizeBytes  int64
	VirtualSizeBytes int64
}

//go:generate go run github.com/golang/mock/mockgen -package mocks -source $GOFILE -mock_names=Client=MockVdiskClient -destination ../../mocks/mock_vdisk_client.go

// Client abstracts the disk-image helper programs.
type Client interface {
	// Convert converts the image at path to targetFormat, writing the result
	// next to path with the format's extension and returning the new path.
	// subformat may be empty; for vmdk it selects e.g. "streamOptimized".
	Convert(ctx context.Context, path string, targetFormat Format, subformat string) (string, error)
	// Capacity returns the virtual capacity of the image in bytes.
	Capacity(ctx context.Context, path string) (int64, error)
	// Info runs `qemu-img info` on path.
	Info(ctx context.Context, path string) (ImageInfo, error)
	// Checksum returns the hex digest of the file's bytes under algorithm
	// ("sha1" or "sha256").
	Checksum(path string, algorithm string) (string, error)
}

// NewClient returns a Client backed by the qemu-img program.
func NewClient(executor shell.Executor) Client {
	return &qemuImgClient{executor: executor, timeout: 30 * time.Minute}
}

type qemuImgClient struct {
	executor shell.Executor
	timeout  time.Duration
}

func (c *qemuImgClient) Convert(ctx context.Context, path string, targetFormat Format, subformat string) (string, error) {
	if !files.Exists(path) {
		return "", errs.InvalidInputf("disk image %q not found", path)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := strings.TrimSuffix(path, filepath.Ext(path)) + "." + string(targetFormat)
	args := []string{"convert", "-O", string(targetFormat)}
	if subformat != "" {
		args = append(args, "-o", "subformat="+subformat)
	}
	args = append(args, path, out)
	if _, err := c.executor.Exec(ctx, "qemu-img", args...); err != nil {
		return "", err
	}
	return out, nil
}

func (c *qemuImgClient) Capacity(ctx context.Context, path string) (int64, error) {
	info, err := c.Info(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.VirtualSizeBytes, nil
}

func (c *qemuImgClient) Info(ctx context.Context, path string) (info ImageInfo, err error) {
	if !files.Exists(path) {
		return info, errs.InvalidInputf("disk image %q not found", path)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.executor.Exec(ctx, "qemu-img", "info", "--output=json", path)
	if err != nil {
		return info, err
	}
	jsonTemplate := struct {
		Filename         string `json:"filename"`
		Format           string `json:"format"`
		ActualSizeBytes  int64  `json:"actual-size"`
		VirtualSizeBytes int64  `json:"virtual-size"`
	}{}
	if err = json.Unmarshal([]byte(out), &jsonTemplate); err != nil {
		return info, errs.Wrap(errs.HelperFailed, fmt.Errorf("failed to inspect %q: %w", path, err))
	}
	return ImageInfo{
		Format:           lookupFileFormat(jsonTemplate.Format),
		ActualSizeBytes:  jsonTemplate.ActualSizeBytes,
		VirtualSizeBytes: jsonTemplate.VirtualSizeBytes,
	}, nil
}

func (c *qemuImgClient) Checksum(path string, algorithm string) (string, error) {
	var hasher hash.Hash
	switch algorithm {
	case "sha1":
		hasher = sha1.New()
	case "sha256":
		hasher = sha256.New()
	default:
		return "", errs.Unsupported("checksum algorithm", algorithm, []string{"sha1", "sha256"})
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func lookupFileFormat(s string) Format {
	format := formats[strings.ToLower(s)]
	if format != "" {
		return format
	}
	return FormatUnknown
}
