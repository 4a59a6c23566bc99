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

// OVF/OVA package editing tool
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
	"github.com/ovfkit/ovf-edit-tools/common/shell"
	"github.com/ovfkit/ovf-edit-tools/common/vdisk"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/descriptor"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/inspector"
	"github.com/ovfkit/ovf-edit-tools/ovf_edit/ovf"
)

const usageText = `Usage: ovf_edit COMMAND [flags] PACKAGE

Commands:
  info            show a summary of the package
  edit-hardware   change CPU, memory, NIC and serial port configuration
  edit-product    change product metadata
  edit-properties set guest environment properties
  add-disk        add or replace a disk file
  create-profile  declare a new configuration profile
  delete-profile  remove a configuration profile

Run "ovf_edit COMMAND -help" for the flags of each command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	var err error
	switch args[0] {
	case "info":
		err = runInfo(args[1:])
	case "edit-hardware":
		err = runEditHardware(args[1:])
	case "edit-product":
		err = runEditProduct(args[1:])
	case "edit-properties":
		err = runEditProperties(args[1:])
	case "add-disk":
		err = runAddDisk(args[1:])
	case "create-profile":
		err = runCreateProfile(args[1:])
	case "delete-profile":
		err = runDeleteProfile(args[1:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", args[0], usageText)
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errs.IsUsage(err) {
			return 2
		}
		return 1
	}
	return 0
}

// commonFlags are shared by every editing command.
type commonFlags struct {
	output  string
	verbose bool
	yes     bool
}

func addCommonFlags(fs *flag.FlagSet, c *commonFlags) {
	fs.StringVar(&c.output, "output", "", "Write the result to this path instead of overwriting the input package.")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable debug logging.")
	fs.BoolVar(&c.yes, "yes", false, "Assume yes for all confirmation prompts.")
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func confirmFunc(yes bool) descriptor.ConfirmFunc {
	if yes {
		return func(string) bool { return true }
	}
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) bool {
		fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

// packageArg returns the positional package path after flag parsing.
func packageArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", errs.InvalidInputf("exactly one package path is required, got %d arguments", fs.NArg())
	}
	return fs.Arg(0), nil
}

func openDocument(path string, c commonFlags) (*descriptor.Document, error) {
	logger := newLogger(c.verbose)
	return descriptor.Open(path, descriptor.Dependencies{
		Disk:    vdisk.NewClient(shell.NewShellExecutor()),
		Confirm: confirmFunc(c.yes),
		Logger:  logger,
	})
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	var buf bytes.Buffer
	if err := ovf.Marshal(&buf, doc.Envelope()); err != nil {
		return err
	}
	summary, err := inspector.Inspect(buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Print(summary.String())
	return nil
}

func runEditHardware(args []string) error {
	fs := flag.NewFlagSet("edit-hardware", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	cpus := fs.Int("cpus", 0, "Number of virtual CPUs.")
	memory := fs.Int("memory", 0, "Memory size in MiB.")
	nics := fs.Int("nics", -1, "Number of network interfaces.")
	serials := fs.Int("serials", -1, "Number of serial ports.")
	nicTypes := fs.String("nic-types", "", "Comma-separated NIC subtypes, e.g. virtio,VMXNET3.")
	nicNetworks := fs.String("nic-networks", "", "Comma-separated network names mapped to NICs in order.")
	nicNames := fs.String("nic-names", "", "Comma-separated NIC display names assigned in order.")
	macs := fs.String("mac-addresses", "", "Comma-separated MAC addresses assigned to NICs in order.")
	profilesFlag := fs.String("profiles", "", "Comma-separated profiles to change; default changes all.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	profiles := splitList(*profilesFlag)
	if *cpus > 0 {
		if err := doc.SetCPUCount(*cpus, profiles); err != nil {
			return err
		}
	}
	if *memory > 0 {
		if err := doc.SetMemoryMB(*memory, profiles); err != nil {
			return err
		}
	}
	if *nics >= 0 {
		if err := doc.SetNICCount(*nics, profiles); err != nil {
			return err
		}
	}
	if *serials >= 0 {
		if err := doc.SetSerialCount(*serials, profiles); err != nil {
			return err
		}
	}
	if list := splitList(*nicTypes); len(list) > 0 {
		if err := doc.SetNICSubtypes(list, profiles); err != nil {
			return err
		}
	}
	if list := splitList(*nicNetworks); len(list) > 0 {
		if err := doc.SetNICNetworks(list, profiles); err != nil {
			return err
		}
	}
	if list := splitList(*nicNames); len(list) > 0 {
		if err := doc.SetNICNames(list, profiles); err != nil {
			return err
		}
	}
	if list := splitList(*macs); len(list) > 0 {
		if err := doc.SetMACAddresses(list, profiles); err != nil {
			return err
		}
	}
	return doc.Write(c.output)
}

func runEditProduct(args []string) error {
	fs := flag.NewFlagSet("edit-product", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	class := fs.String("class", "", "Product class identifier, e.g. com.cisco.csr1000v.")
	product := fs.String("product", "", "Product name.")
	vendor := fs.String("vendor", "", "Vendor name.")
	version := fs.String("version", "", "Short version string.")
	fullVersion := fs.String("full-version", "", "Full version string.")
	productURL := fs.String("product-url", "", "Product URL.")
	vendorURL := fs.String("vendor-url", "", "Vendor URL.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	doc.SetProductInfo(descriptor.ProductInfo{
		Class:       *class,
		Product:     *product,
		Vendor:      *vendor,
		Version:     *version,
		FullVersion: *fullVersion,
		ProductURL:  *productURL,
		VendorURL:   *vendorURL,
	})
	return doc.Write(c.output)
}

func runEditProperties(args []string) error {
	fs := flag.NewFlagSet("edit-properties", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	key := fs.String("key", "", "Property key.")
	value := fs.String("value", "", "Property value.")
	propType := fs.String("type", "", "Property type, defaults to string.")
	label := fs.String("label", "", "Property label.")
	description := fs.String("description", "", "Property description.")
	userConfigurable := fs.Bool("user-configurable", false, "Mark the property as user configurable.")
	profilesFlag := fs.String("profiles", "", "Comma-separated profiles to bind the value to.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := doc.SetEnvironmentProperty(descriptor.PropertyParams{
		Key:              *key,
		Value:            *value,
		Type:             *propType,
		Label:            *label,
		Description:      *description,
		UserConfigurable: *userConfigurable,
		Profiles:         splitList(*profilesFlag),
	}); err != nil {
		return err
	}
	return doc.Write(c.output)
}

func runAddDisk(args []string) error {
	fs := flag.NewFlagSet("add-disk", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	disk := fs.String("disk", "", "Path of the disk image to add.")
	kind := fs.String("type", "harddisk", "Device type: harddisk or cdrom.")
	controller := fs.String("controller", "", "Controller type: ide, sata or scsi.")
	address := fs.String("address", "", "Device address as controller:device, e.g. 1:0.")
	subType := fs.String("subtype", "", "Controller subtype, e.g. virtio or lsilogic.")
	fileID := fs.String("file-id", "", "File id to assign or match.")
	diskID := fs.String("disk-id", "", "Disk id to assign.")
	name := fs.String("name", "", "Device display name.")
	description := fs.String("description", "", "Device description.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := doc.AddDisk(context.Background(), descriptor.AddDiskParams{
		DiskPath:       *disk,
		Kind:           *kind,
		ControllerType: *controller,
		Address:        *address,
		SubType:        *subType,
		FileID:         *fileID,
		DiskID:         *diskID,
		Name:           *name,
		Description:    *description,
	}); err != nil {
		return err
	}
	return doc.Write(c.output)
}

func runCreateProfile(args []string) error {
	fs := flag.NewFlagSet("create-profile", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	profile := fs.String("profile", "", "Profile id to create.")
	label := fs.String("label", "", "Profile label.")
	description := fs.String("description", "", "Profile description.")
	isDefault := fs.Bool("default", false, "Make this the default profile.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := doc.CreateProfile(descriptor.CreateProfileParams{
		ID:          *profile,
		Label:       *label,
		Description: *description,
		Default:     *isDefault,
	}); err != nil {
		return err
	}
	return doc.Write(c.output)
}

func runDeleteProfile(args []string) error {
	fs := flag.NewFlagSet("delete-profile", flag.ExitOnError)
	var c commonFlags
	addCommonFlags(fs, &c)
	profile := fs.String("profile", "", "Profile id to delete.")
	fs.Parse(args)

	path, err := packageArg(fs)
	if err != nil {
		return err
	}
	doc, err := openDocument(path, c)
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := doc.DeleteProfile(*profile); err != nil {
		return err
	}
	return doc.Write(c.output)
}
