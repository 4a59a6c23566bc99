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

package packer

import (
	"bufio"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

// Manifest checksum algorithms accepted by deployment targets.
const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
)

func newHasher(algorithm string) (hash.Hash, string, error) {
	switch algorithm {
	case AlgorithmSHA1:
		return sha1.New(), "SHA1", nil
	case AlgorithmSHA256:
		return sha256.New(), "SHA256", nil
	}
	return nil, "", errs.Unsupported("manifest algorithm", algorithm,
		[]string{AlgorithmSHA1, AlgorithmSHA256})
}

// manifestNameFor derives the manifest file name from the descriptor:
// "appliance.ovf" carries "appliance.mf".
func manifestNameFor(descriptorName string) string {
	ext := filepath.Ext(descriptorName)
	return strings.TrimSuffix(descriptorName, ext) + ".mf"
}

// GenerateManifest writes the companion manifest for the descriptor and
// the listed files, one "ALGO(name)= hex" line per file, descriptor
// first. The manifest is regenerated wholesale; any previous content is
// discarded.
func (pk *Packer) GenerateManifest(dir, descriptorName string, files []string, algorithm string) error {
	names := append([]string{descriptorName}, files...)

	var sb strings.Builder
	for _, name := range names {
		digest, label, err := pk.fileDigest(filepath.Join(dir, name), algorithm)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, "%s(%s)= %s\n", label, name, digest)
	}

	manifestPath := filepath.Join(dir, manifestNameFor(descriptorName))
	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0644); err != nil {
		return err
	}
	pk.logger.Debug().Str("manifest", manifestPath).Int("entries", len(names)).Msg("wrote manifest")
	return nil
}

func (pk *Packer) fileDigest(path, algorithm string) (digest, label string, err error) {
	hasher, label, err := newHasher(algorithm)
	if err != nil {
		return "", "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", "", fmt.Errorf("error while generating %s for %s: %w", label, path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), label, nil
}

// VerifyManifest checks every entry of an existing manifest against the
// files in dir, returning a mismatch error naming the first file whose
// digest disagrees. Entries for missing files fail as invalid input.
func (pk *Packer) VerifyManifest(dir, manifestName string) error {
	f, err := os.Open(filepath.Join(dir, manifestName))
	if err != nil {
		return errs.InvalidInputf("cannot open manifest %s: %v", manifestName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		label, name, want, ok := parseManifestLine(line)
		if !ok {
			return errs.InvalidInputf("manifest %s has malformed line %q", manifestName, line)
		}
		algorithm := strings.ToLower(label)
		got, _, err := pk.fileDigest(filepath.Join(dir, name), algorithm)
		if err != nil {
			return errs.InvalidInputf("manifest %s references %s: %v", manifestName, name, err)
		}
		if got != want {
			return errs.Mismatchf(fmt.Sprintf("%s digest of %s", label, name), got, want)
		}
	}
	return scanner.Err()
}

// parseManifestLine splits "SHA1(file.ovf)= abc123" into its parts.
func parseManifestLine(line string) (label, name, digest string, ok bool) {
	open := strings.Index(line, "(")
	end := strings.Index(line, ")=")
	if open < 1 || end < open {
		return "", "", "", false
	}
	label = line[:open]
	name = line[open+1 : end]
	digest = strings.TrimSpace(line[end+2:])
	if name == "" || digest == "" {
		return "", "", "", false
	}
	return label, name, digest, true
}
