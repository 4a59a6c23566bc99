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

// Package descriptor exposes the document-level editing operations. A
// Document owns the parsed envelope, its hardware model and, for OVA
// input, a temporary working directory that lives until Close.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/utils/collections"
	"github.com/ovfkit/ovf-edit-tools/common/utils/files"
	"github.com/ovfkit/ovf-edit-tools/common/vdisk"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/hardware"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/packer"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/platform"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/xref"
)

var validate = validator.New()

// ConfirmFunc asks the user to approve a destructive step. Returning
// false aborts the enclosing operation before any mutation.
type ConfirmFunc func(prompt string) bool

// Dependencies are the external collaborators a Document needs.
type Dependencies struct {
	Disk    vdisk.Client
	Confirm ConfirmFunc
	Logger  zerolog.Logger
}

// Document is an open OVF or OVA package under edit.
type Document struct {
	inputPath      string
	dir            string
	descriptorName string
	workDir        string
	recompress     []string

	env      *ovf.Envelope
	hw       *hardware.Hardware
	platform *platform.Platform
	resolver *xref.Resolver
	packer   *packer.Packer

	disk    vdisk.Client
	confirm ConfirmFunc
	logger  zerolog.Logger
}

// Open parses the package at path. OVA archives are extracted into a
// temporary working directory that Close removes.
func Open(path string, deps Dependencies) (*Document, error) {
	if !files.Exists(path) {
		return nil, errs.InvalidInputf("package %s does not exist", path)
	}

	d := &Document{
		inputPath: path,
		packer:    packer.New(deps.Logger),
		disk:      deps.Disk,
		confirm:   deps.Confirm,
		logger:    deps.Logger.With().Str("component", "descriptor").Logger(),
	}
	if d.confirm == nil {
		d.confirm = func(string) bool { return true }
	}

	switch {
	case files.DirectoryExists(path):
		descriptor, err := files.FindWithExtension(path, ".ovf")
		if err != nil {
			return nil, err
		}
		if descriptor == "" {
			return nil, errs.InvalidInputf("directory %s contains no OVF descriptor", path)
		}
		d.dir, d.descriptorName = path, filepath.Base(descriptor)
	case packer.IsOVA(path):
		d.workDir = filepath.Join(os.TempDir(), "ovf-edit-"+uuid.NewString())
		if err := os.MkdirAll(d.workDir, 0700); err != nil {
			return nil, err
		}
		name, err := d.packer.Extract(path, d.workDir)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.dir, d.descriptorName = d.workDir, name
	default:
		d.dir, d.descriptorName = filepath.Dir(path), filepath.Base(path)
	}

	if err := d.parse(); err != nil {
		d.Close()
		return nil, err
	}
	if d.workDir != "" {
		if err := d.decompressReferences(); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// decompressReferences gunzips compressed file references inside the
// extracted working directory so editing tools operate on raw content.
// Write restores the compression. Loose packages are left untouched
// since their files belong to the caller.
func (d *Document) decompressReferences() error {
	for i := range d.env.References {
		f := &d.env.References[i]
		if f.Compression == nil || *f.Compression != "gzip" {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Href), ".gz") {
			continue
		}
		p := filepath.Join(d.dir, f.Href)
		if !files.Exists(p) {
			continue
		}
		dest, err := d.packer.DecompressFile(p)
		if err != nil {
			return err
		}
		d.logger.Debug().Str("file", f.Href).Msg("decompressed referenced file for editing")
		f.Href = filepath.Base(dest)
		f.Compression = nil
		d.recompress = append(d.recompress, f.Href)
	}
	return nil
}

// recompressReferences re-gzips the references decompressed at Open so
// the written package matches what was unpacked.
func (d *Document) recompressReferences() error {
	for _, href := range d.recompress {
		for i := range d.env.References {
			f := &d.env.References[i]
			if f.Href != href {
				continue
			}
			dest, err := d.packer.CompressFile(filepath.Join(d.dir, href))
			if err != nil {
				return err
			}
			f.Href = filepath.Base(dest)
			gz := "gzip"
			f.Compression = &gz
			if stat, err := os.Stat(dest); err == nil {
				f.Size = stat.Size()
			}
		}
	}
	d.recompress = nil
	return nil
}

func (d *Document) parse() error {
	f, err := os.Open(filepath.Join(d.dir, d.descriptorName))
	if err != nil {
		return err
	}
	defer f.Close()

	env, err := ovf.Unmarshal(f)
	if err != nil {
		return errs.InvalidInputf("cannot parse OVF descriptor %s: %v", d.descriptorName, err)
	}
	if env.VirtualSystem == nil {
		return errs.InvalidInputf("descriptor %s has no VirtualSystem", d.descriptorName)
	}
	if len(env.VirtualSystem.VirtualHardware) == 0 {
		return errs.InvalidInputf("descriptor %s has no VirtualHardwareSection", d.descriptorName)
	}
	d.env = env

	var profiles []hardware.Profile
	if env.DeploymentOption != nil {
		for _, c := range env.DeploymentOption.Configurations {
			profiles = append(profiles, hardware.Profile(c.ID))
		}
	}

	registry := platform.NewRegistry()
	d.platform = registry.Generic()
	for _, p := range env.VirtualSystem.Product {
		if p.Class != nil && *p.Class != "" {
			d.platform = registry.Lookup(*p.Class)
			break
		}
	}

	hw, err := hardware.NewHardware(&env.VirtualSystem.VirtualHardware[0], profiles, d.platform, d.logger)
	if err != nil {
		return err
	}
	d.hw = hw
	d.resolver = xref.NewResolver(env, hw)
	return nil
}

// Close releases the document's working directory. Safe to call more
// than once.
func (d *Document) Close() {
	if d.workDir != "" {
		if err := os.RemoveAll(d.workDir); err != nil {
			d.logger.Warn().Err(err).Str("dir", d.workDir).Msg("could not remove working directory")
		}
		d.workDir = ""
	}
}

// Envelope exposes the parsed document tree.
func (d *Document) Envelope() *ovf.Envelope { return d.env }

// Hardware exposes the profile-aware hardware model.
func (d *Document) Hardware() *hardware.Hardware { return d.hw }

// Platform returns the capability table resolved from the product class.
func (d *Document) Platform() *platform.Platform { return d.platform }

// Write regenerates the descriptor and manifest and writes the package
// to outputPath; "" overwrites the input. A .ova destination repacks the
// whole archive, anything else writes the descriptor and companions as
// loose files.
func (d *Document) Write(outputPath string) error {
	if outputPath == "" {
		outputPath = d.inputPath
	}
	if dir := filepath.Dir(outputPath); !files.DirectoryExists(dir) {
		return errs.InvalidInputf("output directory %s does not exist", dir)
	}
	if err := d.recompressReferences(); err != nil {
		return err
	}

	d.hw.GenerateSection(&d.env.VirtualSystem.VirtualHardware[0])

	descriptorPath := filepath.Join(d.dir, d.descriptorName)
	out, err := os.OpenFile(descriptorPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := ovf.Marshal(out, d.env); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	var referenced []string
	for _, f := range d.env.References {
		if !files.Exists(filepath.Join(d.dir, f.Href)) {
			d.logger.Warn().Str("file", f.Href).Msg("referenced file missing from package, omitting from manifest")
			continue
		}
		referenced = append(referenced, f.Href)
	}
	if err := d.packer.GenerateManifest(d.dir, d.descriptorName, referenced, packer.AlgorithmSHA1); err != nil {
		return err
	}

	if packer.IsOVA(outputPath) {
		return d.packer.Pack(outputPath, d.dir, d.descriptorName)
	}

	destDir := filepath.Dir(outputPath)
	if sameFile(descriptorPath, outputPath) {
		return nil
	}
	copied := append([]string{d.descriptorName, manifestName(d.descriptorName)}, referenced...)
	for i, name := range copied {
		dest := filepath.Join(destDir, name)
		if i == 0 {
			dest = outputPath
		}
		if err := files.Copy(filepath.Join(d.dir, name), dest); err != nil {
			return err
		}
	}
	return nil
}

func manifestName(descriptorName string) string {
	ext := filepath.Ext(descriptorName)
	return descriptorName[:len(descriptorName)-len(ext)] + ".mf"
}

func sameFile(a, b string) bool {
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	if err1 != nil || err2 != nil {
		abs1, _ := filepath.Abs(a)
		abs2, _ := filepath.Abs(b)
		return abs1 == abs2
	}
	return os.SameFile(ai, bi)
}

// profileSet resolves user-supplied profile names, rejecting undeclared
// ones. Empty input yields a nil set, meaning default coverage.
func (d *Document) profileSet(names []string) (hardware.ProfileSet, []hardware.Profile, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}
	set := hardware.NewProfileSet()
	list := make([]hardware.Profile, 0, len(names))
	for _, n := range names {
		p := hardware.Profile(n)
		if !d.hw.HasProfileDeclared(p) {
			return nil, nil, errs.InvalidInputf("profile %q is not defined in this package", n)
		}
		set.Add(p)
		list = append(list, p)
	}
	return set, list, nil
}

// CreateProfileParams describe a new deployment configuration.
type CreateProfileParams struct {
	ID          string `validate:"required"`
	Label       string
	Description string
	Default     bool
}

// CreateProfile declares a new configuration profile.
func (d *Document) CreateProfile(params CreateProfileParams) error {
	if err := validate.Struct(params); err != nil {
		return errs.InvalidInputf("invalid profile parameters: %v", err)
	}
	if d.hw.HasProfileDeclared(hardware.Profile(params.ID)) {
		return errs.InvalidInputf("profile %q already exists", params.ID)
	}
	if d.env.DeploymentOption == nil {
		d.env.DeploymentOption = &ovf.DeploymentOptionSection{
			Section: ovf.Section{Info: "Configuration Profiles"},
		}
	}
	label := params.Label
	if label == "" {
		label = params.ID
	}
	cfg := ovf.DeploymentOptionConfiguration{
		ID:          params.ID,
		Label:       label,
		Description: params.Description,
	}
	if params.Default {
		for i := range d.env.DeploymentOption.Configurations {
			d.env.DeploymentOption.Configurations[i].Default = nil
		}
		t := true
		cfg.Default = &t
	}
	d.env.DeploymentOption.Configurations = append(d.env.DeploymentOption.Configurations, cfg)
	d.hw.DeclareProfile(hardware.Profile(params.ID))
	return nil
}

// DeleteProfile removes a configuration profile. Hardware existing only
// under it is dropped; hardware shared with other profiles keeps its
// bindings for those profiles.
func (d *Document) DeleteProfile(id string) error {
	if !d.hw.HasProfileDeclared(hardware.Profile(id)) {
		return errs.InvalidInputf("profile %q is not defined in this package", id)
	}
	d.hw.UndeclareProfile(hardware.Profile(id))

	kept := d.env.DeploymentOption.Configurations[:0]
	for _, c := range d.env.DeploymentOption.Configurations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	d.env.DeploymentOption.Configurations = kept
	if len(kept) == 0 {
		d.env.DeploymentOption = nil
	}
	return nil
}

// ProductInfo is the product metadata shown by deployment tools. Empty
// fields leave the current value alone.
type ProductInfo struct {
	Class       string
	Product     string
	Vendor      string
	Version     string
	FullVersion string
	ProductURL  string
	VendorURL   string
}

// SetProductInfo updates the document's first product section, creating
// it when absent.
func (d *Document) SetProductInfo(info ProductInfo) {
	vs := d.env.VirtualSystem
	if len(vs.Product) == 0 {
		vs.Product = append(vs.Product, ovf.ProductSection{
			Section: ovf.Section{Info: "Product Information"},
		})
	}
	p := &vs.Product[0]
	if info.Class != "" {
		p.Class = &info.Class
		d.platform = platform.NewRegistry().Lookup(info.Class)
	}
	setIfPresent := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIfPresent(&p.Product, info.Product)
	setIfPresent(&p.Vendor, info.Vendor)
	setIfPresent(&p.Version, info.Version)
	setIfPresent(&p.FullVersion, info.FullVersion)
	setIfPresent(&p.ProductURL, info.ProductURL)
	setIfPresent(&p.VendorURL, info.VendorURL)
}

// PropertyParams describe one environment property of the guest.
type PropertyParams struct {
	Key              string `validate:"required"`
	Value            string
	Type             string
	UserConfigurable bool
	Label            string
	Description      string

	// Profiles, when set, bind Value as per-configuration values rather
	// than the property default.
	Profiles []string
}

// SetEnvironmentProperty creates or updates a product-section property.
func (d *Document) SetEnvironmentProperty(params PropertyParams) error {
	if err := validate.Struct(params); err != nil {
		return errs.InvalidInputf("invalid property parameters: %v", err)
	}
	if _, _, err := d.profileSet(params.Profiles); err != nil {
		return err
	}

	vs := d.env.VirtualSystem
	if len(vs.Product) == 0 {
		vs.Product = append(vs.Product, ovf.ProductSection{
			Section: ovf.Section{Info: "Product Information"},
		})
	}
	section := &vs.Product[0]

	var prop *ovf.Property
	for i := range section.Property {
		if section.Property[i].Key == params.Key {
			prop = &section.Property[i]
			break
		}
	}
	if prop == nil {
		section.Property = append(section.Property, ovf.Property{Key: params.Key})
		prop = &section.Property[len(section.Property)-1]
	}

	if params.Type != "" {
		prop.Type = params.Type
	} else if prop.Type == "" {
		prop.Type = "string"
	}
	if params.UserConfigurable {
		t := true
		prop.UserConfigurable = &t
	}
	if params.Label != "" {
		label := params.Label
		prop.Label = &label
	}
	if params.Description != "" {
		desc := params.Description
		prop.Description = &desc
	}

	if len(params.Profiles) == 0 {
		value := params.Value
		prop.Default = &value
		return nil
	}
	for _, name := range params.Profiles {
		cfg := name
		updated := false
		for i := range prop.Values {
			if prop.Values[i].Configuration != nil && *prop.Values[i].Configuration == name {
				prop.Values[i].Value = params.Value
				updated = true
				break
			}
		}
		if !updated {
			prop.Values = append(prop.Values, ovf.PropertyConfigurationValue{
				Value:         params.Value,
				Configuration: &cfg,
			})
		}
	}
	return nil
}

// describeTarget names a resolved tuple for confirmation prompts.
func describeTarget(t *xref.Target) string {
	var file, device string
	if t.File != nil {
		file = fmt.Sprintf("file %q", t.File.Href)
	}
	if t.Device != nil {
		device = fmt.Sprintf("device item %s", t.Device.InstanceID())
	}
	if s := collections.JoinNonEmpty([]string{file, device}, " and "); s != "" {
		return s
	}
	return "existing entry"
}
