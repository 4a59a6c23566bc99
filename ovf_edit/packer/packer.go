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

// Package packer reads and writes OVA archives: plain tar containers
// whose first member is the OVF descriptor, optionally followed by a
// manifest and the referenced disk and config files.
package packer

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/rs/zerolog"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

// Packer extracts and rebuilds OVA archives on the local filesystem.
type Packer struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Packer {
	return &Packer{logger: logger.With().Str("component", "packer").Logger()}
}

// IsOVA reports whether the path names a tar-packaged appliance rather
// than a bare descriptor.
func IsOVA(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".ova":
		return true
	case ".gz", ".tgz":
		return true
	}
	return false
}

func isGzipped(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".tgz")
}

// Extract unpacks every member of the archive into destDir and returns
// the name of the descriptor member. Subdirectories inside an OVA are
// not part of the format and are rejected.
func (pk *Packer) Extract(ovaPath, destDir string) (string, error) {
	f, err := os.Open(ovaPath)
	if err != nil {
		return "", errs.InvalidInputf("cannot open archive %s: %v", ovaPath, err)
	}
	defer f.Close()

	var src io.Reader = f
	if isGzipped(ovaPath) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return "", errs.InvalidInputf("archive %s is not valid gzip data: %v", ovaPath, err)
		}
		defer gz.Close()
		src = gz
	}

	descriptor := ""
	tr := tar.NewReader(src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error reading archive %s: %w", ovaPath, err)
		}
		if header == nil {
			continue
		}
		switch header.Typeflag {
		case tar.TypeDir:
			return "", errs.InvalidInputf("archive %s contains subdirectory %s, which the OVA format does not allow",
				ovaPath, header.Name)
		case tar.TypeReg:
			name := path.Base(header.Name)
			pk.logger.Debug().Str("member", name).Int64("size", header.Size).Msg("extracting")
			if err := writeMember(filepath.Join(destDir, name), tr); err != nil {
				return "", err
			}
			if descriptor == "" && strings.HasSuffix(strings.ToLower(name), ".ovf") {
				descriptor = name
			}
		}
	}
	if descriptor == "" {
		return "", errs.InvalidInputf("archive %s contains no OVF descriptor", ovaPath)
	}
	return descriptor, nil
}

func writeMember(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Pack rebuilds the archive from the working directory. The descriptor
// goes first, the manifest (when present) second, then every other file
// in sorted order, as required for the appliance to stream-deploy. A
// destination ending in .gz or .tgz is gzip-compressed.
func (pk *Packer) Pack(ovaPath, dir, descriptorName string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	manifestName := manifestNameFor(descriptorName)
	ordered := []string{descriptorName}
	var rest []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == descriptorName || e.Name() == manifestName {
			continue
		}
		rest = append(rest, e.Name())
	}
	sort.Strings(rest)
	if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
		ordered = append(ordered, manifestName)
	}
	ordered = append(ordered, rest...)

	out, err := os.OpenFile(ovaPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	var dst io.Writer = out
	var gz *pgzip.Writer
	if isGzipped(ovaPath) {
		gz = pgzip.NewWriter(out)
		dst = gz
	}

	tw := tar.NewWriter(dst)
	for _, name := range ordered {
		if err := pk.addMember(tw, dir, name); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return out.Sync()
}

func (pk *Packer) addMember(tw *tar.Writer, dir, name string) error {
	p := filepath.Join(dir, name)
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    info.Size(),
		ModTime: info.ModTime().Truncate(time.Second),
		Format:  tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	pk.logger.Debug().Str("member", name).Int64("size", info.Size()).Msg("packing")
	_, err = io.Copy(tw, f)
	return err
}

// CompressFile gzips src into src+".gz" and removes the original,
// returning the new name. Used when a File reference asks for gzip
// compression.
func (pk *Packer) CompressFile(src string) (string, error) {
	dest := src + ".gz"
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	gz := pgzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, os.Remove(src)
}

// DecompressFile gunzips src, which must end in .gz, into the same name
// without the suffix, removing the original.
func (pk *Packer) DecompressFile(src string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(src), ".gz") {
		return "", errs.InvalidInputf("%s is not a .gz file", src)
	}
	dest := src[:len(src)-len(".gz")]
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	gz, err := pgzip.NewReader(in)
	if err != nil {
		return "", errs.InvalidInputf("%s is not valid gzip data: %v", src, err)
	}
	defer gz.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, os.Remove(src)
}
