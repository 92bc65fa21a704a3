// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package contract is a generated GoMock package.
package contract

import (
	reflect "reflect"

	types "github.com/CosmWasm/wasmvm/v2/types"
	gomock "go.uber.org/mock/gomock"
)

// MockHarness is a mock of Harness interface.
type MockHarness struct {
	ctrl     *gomock.Controller
	recorder *MockHarnessMockRecorder
}

// MockHarnessMockRecorder is the mock recorder for MockHarness.
type MockHarnessMockRecorder struct {
	mock *MockHarness
}

// NewMockHarness creates a new mock instance.
func NewMockHarness(ctrl *gomock.Controller) *MockHarness {
	mock := &MockHarness{ctrl: ctrl}
	mock.recorder = &MockHarnessMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockHarness) EXPECT() *MockHarnessMockRecorder {
	return m.recorder
}

// Execute mocks base method.
func (m *MockHarness) Execute(deps Deps, env types.Env, info types.MessageInfo, msg []byte) (types.Response, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Execute", deps, env, info, msg)
	ret0, _ := ret[0].(types.Response)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Execute indicates an expected call of Execute.
func (mr *MockHarnessMockRecorder) Execute(deps, env, info, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Execute", reflect.TypeOf((*MockHarness)(nil).Execute), deps, env, info, msg)
}

// Instantiate mocks base method.
func (m *MockHarness) Instantiate(deps Deps, env types.Env, info types.MessageInfo, msg []byte) (types.Response, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Instantiate", deps, env, info, msg)
	ret0, _ := ret[0].(types.Response)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Instantiate indicates an expected call of Instantiate.
func (mr *MockHarnessMockRecorder) Instantiate(deps, env, info, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Instantiate", reflect.TypeOf((*MockHarness)(nil).Instantiate), deps, env, info, msg)
}

// Query mocks base method.
func (m *MockHarness) Query(deps Deps, env types.Env, msg []byte) ([]byte, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Query", deps, env, msg)
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Query indicates an expected call of Query.
func (mr *MockHarnessMockRecorder) Query(deps, env, msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Query", reflect.TypeOf((*MockHarness)(nil).Query), deps, env, msg)
}

// MockReplier is a mock of Replier interface.
type MockReplier struct {
	ctrl     *gomock.Controller
	recorder *MockReplierMockRecorder
}

// MockReplierMockRecorder is the mock recorder for MockReplier.
type MockReplierMockRecorder struct {
	mock *MockReplier
}

// NewMockReplier creates a new mock instance.
func NewMockReplier(ctrl *gomock.Controller) *MockReplier {
	mock := &MockReplier{ctrl: ctrl}
	mock.recorder = &MockReplierMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReplier) EXPECT() *MockReplierMockRecorder {
	return m.recorder
}

// Reply mocks base method.
func (m *MockReplier) Reply(deps Deps, env types.Env, reply types.Reply) (types.Response, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Reply", deps, env, reply)
	ret0, _ := ret[0].(types.Response)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Reply indicates an expected call of Reply.
func (mr *MockReplierMockRecorder) Reply(deps, env, reply any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Reply", reflect.TypeOf((*MockReplier)(nil).Reply), deps, env, reply)
}

// MockApi is a mock of Api interface.
type MockApi struct {
	ctrl     *gomock.Controller
	recorder *MockApiMockRecorder
}

// MockApiMockRecorder is the mock recorder for MockApi.
type MockApiMockRecorder struct {
	mock *MockApi
}

// NewMockApi creates a new mock instance.
func NewMockApi(ctrl *gomock.Controller) *MockApi {
	mock := &MockApi{ctrl: ctrl}
	mock.recorder = &MockApiMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockApi) EXPECT() *MockApiMockRecorder {
	return m.recorder
}

// AddrValidate mocks base method.
func (m *MockApi) AddrValidate(address string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AddrValidate", address)
	ret0, _ := ret[0].(error)
	return ret0
}

// AddrValidate indicates an expected call of AddrValidate.
func (mr *MockApiMockRecorder) AddrValidate(address any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AddrValidate", reflect.TypeOf((*MockApi)(nil).AddrValidate), address)
}
