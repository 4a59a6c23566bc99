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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ovfkit/ovf-edit-tools/common/errs"
)

const testDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<Envelope>
  <References>
    <File id="file1" href="disk1.vmdk" size="104857600"/>
    <File id="file2" href="config.iso" size="1024" compression="gzip"/>
  </References>
  <DiskSection>
    <Info>Virtual disk information</Info>
    <Disk diskId="vmdisk1" fileRef="file1" capacity="20" capacityAllocationUnits="byte * 2^30"/>
  </DiskSection>
  <NetworkSection>
    <Info>The list of logical networks</Info>
    <Network name="mgmt"/>
    <Network name="lan"/>
  </NetworkSection>
  <DeploymentOptionSection>
    <Info>Configuration Profiles</Info>
    <Configuration id="small" default="true">
      <Label>Small</Label>
    </Configuration>
    <Configuration id="large">
      <Label>Large</Label>
    </Configuration>
  </DeploymentOptionSection>
  <VirtualSystem id="router">
    <Info>Virtual system</Info>
    <ProductSection>
      <Info>Product Information</Info>
      <Product>CSR 1000V</Product>
      <Vendor>Cisco Systems</Vendor>
      <Version>3.13</Version>
      <Property key="hostname" type="string" userConfigurable="true" value="csr1000v">
        <Label>Router Name</Label>
      </Property>
      <Property key="enable-password" type="string" userConfigurable="true" password="true" value="secret"/>
    </ProductSection>
    <VirtualHardwareSection>
      <Info>Virtual hardware requirements</Info>
      <Item>
        <InstanceID>1</InstanceID>
        <ResourceType>3</ResourceType>
        <VirtualQuantity>1</VirtualQuantity>
      </Item>
      <Item configuration="large">
        <InstanceID>1</InstanceID>
        <ResourceType>3</ResourceType>
        <VirtualQuantity>4</VirtualQuantity>
      </Item>
      <Item>
        <InstanceID>2</InstanceID>
        <ResourceType>4</ResourceType>
        <AllocationUnits>byte * 2^20</AllocationUnits>
        <VirtualQuantity>4096</VirtualQuantity>
      </Item>
    </VirtualHardwareSection>
  </VirtualSystem>
</Envelope>`

func Test_Inspect_ExtractsProductAndFiles(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	assert.Equal(t, "CSR 1000V", s.Product)
	assert.Equal(t, "Cisco Systems", s.Vendor)
	assert.Equal(t, "3.13", s.Version)
	assert.Equal(t, "router", s.SystemID)

	assert.Len(t, s.Files, 2)
	assert.Equal(t, "disk1.vmdk", s.Files[0].Href)
	assert.Equal(t, int64(104857600), s.Files[0].SizeBytes)
	assert.Equal(t, "gzip", s.Files[1].Compression)
}

func Test_Inspect_ResolvesDiskCapacity(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	assert.Len(t, s.Disks, 1)
	assert.Equal(t, "vmdisk1", s.Disks[0].DiskID)
	assert.Equal(t, "file1", s.Disks[0].FileRef)
	assert.Equal(t, int64(20)<<30, s.Disks[0].CapacityBytes)
}

func Test_Inspect_ListsNetworks(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	assert.Equal(t, []string{"mgmt", "lan"}, s.Networks)
}

func Test_Inspect_ResolvesHardwarePerProfile(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	assert.Len(t, s.Profiles, 2)

	small := s.Profiles[0]
	assert.Equal(t, "small", small.ID)
	assert.Equal(t, "Small", small.Label)
	assert.True(t, small.Default)
	assert.Equal(t, int64(1), small.CPUs)
	assert.Equal(t, int64(4096)<<20, small.MemoryBytes)

	large := s.Profiles[1]
	assert.Equal(t, "large", large.ID)
	assert.False(t, large.Default)
	assert.Equal(t, int64(4), large.CPUs, "qualified element overrides the unqualified one")
	assert.Equal(t, int64(4096)<<20, large.MemoryBytes)
}

func Test_Inspect_ListsEnvironmentProperties(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	assert.Len(t, s.Properties, 2)

	hostname := s.Properties[0]
	assert.Equal(t, "hostname", hostname.Key)
	assert.Equal(t, "csr1000v", hostname.Value)
	assert.Equal(t, "Router Name", hostname.Label)
	assert.False(t, hostname.Masked)

	password := s.Properties[1]
	assert.Equal(t, "enable-password", password.Key)
	assert.True(t, password.Masked)
	assert.Equal(t, "******", password.Value, "password values never appear in clear text")
}

func Test_Inspect_NoDeploymentOptionsYieldsSingleDefaultProfile(t *testing.T) {
	descriptor := `<Envelope>
  <VirtualSystem id="vm">
    <Info>Virtual system</Info>
    <VirtualHardwareSection>
      <Info>Virtual hardware</Info>
      <Item>
        <InstanceID>1</InstanceID>
        <ResourceType>3</ResourceType>
        <VirtualQuantity>2</VirtualQuantity>
      </Item>
    </VirtualHardwareSection>
  </VirtualSystem>
</Envelope>`
	s, err := Inspect([]byte(descriptor))
	assert.NoError(t, err)
	assert.Len(t, s.Profiles, 1)
	assert.Equal(t, "", s.Profiles[0].ID)
	assert.Equal(t, int64(2), s.Profiles[0].CPUs)
}

func Test_Inspect_MalformedXMLIsInvalidInput(t *testing.T) {
	_, err := Inspect([]byte("<Envelope"))
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func Test_SummaryString_RendersReport(t *testing.T) {
	s, err := Inspect([]byte(testDescriptor))
	assert.NoError(t, err)
	report := s.String()
	assert.Contains(t, report, "Product:  CSR 1000V")
	assert.Contains(t, report, "disk1.vmdk")
	assert.Contains(t, report, "[gzip]")
	assert.Contains(t, report, "20 GiB")
	assert.Contains(t, report, "Properties:")
	assert.Contains(t, report, `Router Name                    "csr1000v"`)
	assert.NotContains(t, report, "secret")
	assert.Contains(t, report, "Configuration Profiles:")
	assert.Contains(t, report, "small")
	assert.Contains(t, report, " *")
}
