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

package ovf

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefixedDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<ovf:Envelope xmlns:ovf="http://schemas.dmtf.org/ovf/envelope/1"
    xmlns:rasd="http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_ResourceAllocationSettingData"
    xmlns:epasd="http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_EthernetPortAllocationSettingData"
    xmlns:vmw="http://www.vmware.com/schema/ovf"
    ovf:version="2.0">
  <ovf:References>
    <ovf:File ovf:id="file1" ovf:href="disk1.vmdk" ovf:size="1024"/>
    <ovf:File ovf:id="file2" ovf:href="config.iso" ovf:size="358400" ovf:compression="gzip"/>
  </ovf:References>
  <ovf:DiskSection>
    <ovf:Info>Virtual disk information</ovf:Info>
    <ovf:Disk ovf:diskId="vmdisk1" ovf:fileRef="file1" ovf:capacity="8"
        ovf:capacityAllocationUnits="byte * 2^30"/>
  </ovf:DiskSection>
  <ovf:NetworkSection>
    <ovf:Info>The list of logical networks</ovf:Info>
    <ovf:Network ovf:name="GigabitEthernet1">
      <ovf:Description>Data network</ovf:Description>
    </ovf:Network>
  </ovf:NetworkSection>
  <ovf:DeploymentOptionSection>
    <ovf:Info>Configuration Profiles</ovf:Info>
    <ovf:Configuration ovf:id="1CPU-4GB" ovf:default="true">
      <ovf:Label>Small</ovf:Label>
      <ovf:Description>Minimal footprint</ovf:Description>
    </ovf:Configuration>
  </ovf:DeploymentOptionSection>
  <ovf:VirtualSystem ovf:id="vm">
    <ovf:Info>A virtual machine</ovf:Info>
    <ovf:Name>router</ovf:Name>
    <ovf:ProductSection ovf:class="com.cisco.csr1000v">
      <ovf:Info>Product information</ovf:Info>
      <ovf:Product>CSR 1000V</ovf:Product>
      <ovf:Vendor>Cisco Systems, Inc.</ovf:Vendor>
      <ovf:Property ovf:key="hostname" ovf:type="string" ovf:value="csr">
        <ovf:Label>Hostname</ovf:Label>
        <ovf:Value ovf:value="csr-small" ovf:configuration="1CPU-4GB"/>
      </ovf:Property>
    </ovf:ProductSection>
    <ovf:VirtualHardwareSection>
      <ovf:Info>Virtual hardware requirements</ovf:Info>
      <ovf:Item>
        <rasd:AllocationUnits>hertz * 10^6</rasd:AllocationUnits>
        <rasd:ElementName>CPU</rasd:ElementName>
        <rasd:InstanceID>1</rasd:InstanceID>
        <rasd:ResourceType>3</rasd:ResourceType>
        <rasd:VirtualQuantity>1</rasd:VirtualQuantity>
        <vmw:CoresPerSocket ovf:required="false">1</vmw:CoresPerSocket>
      </ovf:Item>
      <ovf:EthernetPortItem ovf:configuration="1CPU-4GB">
        <epasd:Connection>GigabitEthernet1</epasd:Connection>
        <epasd:ElementName>GigabitEthernet1</epasd:ElementName>
        <epasd:InstanceID>11</epasd:InstanceID>
        <epasd:ResourceSubType>VMXNET3</epasd:ResourceSubType>
        <epasd:ResourceType>10</epasd:ResourceType>
      </ovf:EthernetPortItem>
    </ovf:VirtualHardwareSection>
  </ovf:VirtualSystem>
</ovf:Envelope>
`

func Test_Unmarshal_ParsesPrefixedDescriptor(t *testing.T) {
	env, err := Unmarshal(strings.NewReader(prefixedDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "2.0", env.Version)
	require.Len(t, env.References, 2)
	assert.Equal(t, "file1", env.References[0].ID)
	assert.Equal(t, "disk1.vmdk", env.References[0].Href)
	assert.Equal(t, int64(1024), env.References[0].Size)
	assert.Nil(t, env.References[0].Compression)
	require.NotNil(t, env.References[1].Compression)
	assert.Equal(t, "gzip", *env.References[1].Compression)

	require.NotNil(t, env.Disk)
	require.Len(t, env.Disk.Disks, 1)
	assert.Equal(t, "vmdisk1", env.Disk.Disks[0].DiskID)
	assert.Equal(t, "file1", env.Disk.Disks[0].FileReference())
	assert.Equal(t, "8", env.Disk.Disks[0].Capacity)

	require.NotNil(t, env.Network)
	require.Len(t, env.Network.Networks, 1)
	assert.Equal(t, "GigabitEthernet1", env.Network.Networks[0].Name)
	assert.Equal(t, "Data network", env.Network.Networks[0].Description)

	require.NotNil(t, env.DeploymentOption)
	require.Len(t, env.DeploymentOption.Configurations, 1)
	cfg := env.DeploymentOption.Configurations[0]
	assert.Equal(t, "1CPU-4GB", cfg.ID)
	require.NotNil(t, cfg.Default)
	assert.True(t, *cfg.Default)
	assert.Equal(t, "Small", cfg.Label)

	vs := env.VirtualSystem
	require.NotNil(t, vs)
	assert.Equal(t, "vm", vs.ID)
	require.NotNil(t, vs.Name)
	assert.Equal(t, "router", *vs.Name)

	require.Len(t, vs.Product, 1)
	prod := vs.Product[0]
	require.NotNil(t, prod.Class)
	assert.Equal(t, "com.cisco.csr1000v", *prod.Class)
	assert.Equal(t, "CSR 1000V", prod.Product)
	require.Len(t, prod.Property, 1)
	assert.Equal(t, "hostname", prod.Property[0].Key)
	require.Len(t, prod.Property[0].Values, 1)
	assert.Equal(t, "csr-small", prod.Property[0].Values[0].Value)

	require.Len(t, vs.VirtualHardware, 1)
	hw := vs.VirtualHardware[0]
	require.Len(t, hw.Item, 1)
	require.Len(t, hw.EthernetPortItem, 1)
	assert.Equal(t, "1CPU-4GB", hw.EthernetPortItem[0].Configuration)
}

func Test_Unmarshal_MalformedXMLFails(t *testing.T) {
	_, err := Unmarshal(strings.NewReader("<Envelope><References>"))
	assert.Error(t, err)
}

func Test_Item_ChildValue(t *testing.T) {
	it := Item{Tag: TagItem, Children: []Child{
		{Name: "InstanceID", Value: "4"},
		{Name: "ElementName", Value: "CPU"},
	}}

	v, ok := it.ChildValue("ElementName")
	assert.True(t, ok)
	assert.Equal(t, "CPU", v)

	_, ok = it.ChildValue("ResourceType")
	assert.False(t, ok)
}

func Test_Item_Unmarshal_KeepsItemAttributesAndChildAttributes(t *testing.T) {
	env, err := Unmarshal(strings.NewReader(prefixedDescriptor))
	require.NoError(t, err)

	cpu := env.VirtualSystem.VirtualHardware[0].Item[0]
	assert.Equal(t, TagItem, cpu.Tag)
	assert.Equal(t, "", cpu.Configuration)
	id, ok := cpu.ChildValue("InstanceID")
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	var foreign *Child
	for i := range cpu.Children {
		if cpu.Children[i].IsForeign() {
			foreign = &cpu.Children[i]
		}
	}
	require.NotNil(t, foreign, "vmw:CoresPerSocket must survive as a foreign child")
	assert.Contains(t, foreign.SerializedForm(), "CoresPerSocket")
	assert.Contains(t, foreign.SerializedForm(), `required="false"`)
}

func Test_Item_Marshal_SortsKnownChildrenAndWritesConfiguration(t *testing.T) {
	it := Item{
		Tag:           TagEthernetPortItem,
		Configuration: "2CPU-8GB",
		Attrs:         []Attr{{Name: "required", Value: "false"}},
		Children: []Child{
			{Name: "ResourceType", Value: "10"},
			{Name: "Connection", Value: "lan"},
			{Name: "InstanceID", Value: "11"},
		},
	}

	out, err := xml.Marshal(it)
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `<EthernetPortItem ovf:configuration="2CPU-8GB" ovf:required="false">`)
	conn := strings.Index(s, "<epasd:Connection>")
	id := strings.Index(s, "<epasd:InstanceID>")
	rt := strings.Index(s, "<epasd:ResourceType>")
	assert.True(t, conn >= 0 && conn < id && id < rt,
		"children must appear in alphabetical order")
}

func Test_Item_RoundTrip_PreservesEverything(t *testing.T) {
	env, err := Unmarshal(strings.NewReader(prefixedDescriptor))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Marshal(&buf, env))

	again, err := Unmarshal(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	if diff := cmp.Diff(env.References, again.References); diff != "" {
		t.Errorf("references changed across a round trip: %s", diff)
	}
	if diff := cmp.Diff(env.DeploymentOption, again.DeploymentOption); diff != "" {
		t.Errorf("deployment options changed across a round trip: %s", diff)
	}

	hw := again.VirtualSystem.VirtualHardware[0]
	require.Len(t, hw.Item, 1)
	require.Len(t, hw.EthernetPortItem, 1)

	orig := env.VirtualSystem.VirtualHardware[0].Item[0]
	got := hw.Item[0]
	assert.Equal(t, orig.Tag, got.Tag)
	for _, name := range []string{"InstanceID", "ResourceType", "VirtualQuantity"} {
		want, _ := orig.ChildValue(name)
		have, ok := got.ChildValue(name)
		assert.True(t, ok)
		assert.Equal(t, want, have)
	}

	var want, have string
	for _, c := range orig.Children {
		if c.IsForeign() {
			want = c.SerializedForm()
		}
	}
	for _, c := range got.Children {
		if c.IsForeign() {
			have = c.SerializedForm()
		}
	}
	require.NotEmpty(t, want)
	assert.Equal(t, want, have)

	nic := hw.EthernetPortItem[0]
	assert.Equal(t, "1CPU-4GB", nic.Configuration)
	conn, _ := nic.ChildValue("Connection")
	assert.Equal(t, "GigabitEthernet1", conn)
}

func Test_Marshal_WritesCanonicalNamespaces(t *testing.T) {
	env, err := Unmarshal(strings.NewReader(prefixedDescriptor))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Marshal(&buf, env))
	s := buf.String()

	assert.True(t, strings.HasPrefix(s, xml.Header))
	assert.Contains(t, s, `xmlns:rasd="`+NSRASD+`"`)
	assert.Contains(t, s, `xmlns:epasd="`+NSEPASD+`"`)
	assert.Contains(t, s, `xmlns:vssd="`+NSVSSD+`"`)
	assert.Contains(t, s, `ovf:version="2.0"`)
}

func Test_SetItems_RoutesByTag(t *testing.T) {
	var s VirtualHardwareSection
	s.SetItems([]Item{
		{Tag: TagItem},
		{Tag: TagStorageItem},
		{Tag: TagEthernetPortItem},
		{Tag: TagItem},
	})

	assert.Len(t, s.Item, 2)
	assert.Len(t, s.StorageItem, 1)
	assert.Len(t, s.EthernetPortItem, 1)
	assert.Len(t, s.AllItems(), 4)
}

func Test_IsKnownChildName(t *testing.T) {
	assert.True(t, IsKnownChildName("VirtualQuantity"))
	assert.True(t, IsKnownChildName("Connection"))
	assert.False(t, IsKnownChildName("CoresPerSocket"))
}
