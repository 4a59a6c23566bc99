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

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"

	vdisk "github.com/ovfkit/ovf-edit-tools/common/vdisk"
)

// MockVdiskClient is a mock of Client interface
type MockVdiskClient struct {
	ctrl     *gomock.Controller
	recorder *MockVdiskClientMockRecorder
}

// MockVdiskClientMockRecorder is the mock recorder for MockVdiskClient
type MockVdiskClientMockRecorder struct {
	mock *MockVdiskClient
}

// NewMockVdiskClient creates a new mock instance
func NewMockVdiskClient(ctrl *gomock.Controller) *MockVdiskClient {
	mock := &MockVdiskClient{ctrl: ctrl}
	mock.recorder = &MockVdiskClientMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use
func (m *MockVdiskClient) EXPECT() *MockVdiskClientMockRecorder {
	return m.recorder
}

// Convert mocks base method
func (m *MockVdiskClient) Convert(ctx context.Context, path string, targetFormat vdisk.Format, subformat string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Convert", ctx, path, targetFormat, subformat)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Convert indicates an expected call of Convert
func (mr *MockVdiskClientMockRecorder) Convert(ctx, path, targetFormat, subformat interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Convert", reflect.TypeOf((*MockVdiskClient)(nil).Convert), ctx, path, targetFormat, subformat)
}

// Capacity mocks base method
func (m *MockVdiskClient) Capacity(ctx context.Context, path string) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Capacity", ctx, path)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Capacity indicates an expected call of Capacity
func (mr *MockVdiskClientMockRecorder) Capacity(ctx, path interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Capacity", reflect.TypeOf((*MockVdiskClient)(nil).Capacity), ctx, path)
}

// Info mocks base method
func (m *MockVdiskClient) Info(ctx context.Context, path string) (vdisk.ImageInfo, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Info", ctx, path)
	ret0, _ := ret[0].(vdisk.ImageInfo)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Info indicates an expected call of Info
func (mr *MockVdiskClientMockRecorder) Info(ctx, path interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Info", reflect.TypeOf((*MockVdiskClient)(nil).Info), ctx, path)
}

// Checksum mocks base method
func (m *MockVdiskClient) Checksum(path string, algorithm string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Checksum", path, algorithm)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Checksum indicates an expected call of Checksum
func (mr *MockVdiskClientMockRecorder) Checksum(path, algorithm interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Checksum", reflect.TypeOf((*MockVdiskClient)(nil).Checksum), path, algorithm)
}
