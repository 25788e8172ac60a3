// Copyright 2025 CompliK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events builds the newline-delimited JSON records sent to the
// collector. Every record is an envelope {"type": ..., "data": ...}.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
)

// Envelope types understood by the collector.
const (
	TypeFile       = "file"
	TypeNewProcess = "new_process"
	TypePidList    = "pid_list"

	// TypePwn is used by the interactive shell relay. The agent never emits it.
	TypePwn = "pwn"
)

// Envelope is the outer shape of every record.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FileData is the payload of a "file" record.
type FileData struct {
	Path    string `json:"path"`
	Mode    uint32 `json:"mode"`
	Event   int32  `json:"event"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

// NewProcessData is the payload of a "new_process" record.
type NewProcessData struct {
	PID      uint32 `json:"pid"`
	PPID     uint32 `json:"ppid"`
	UID      uint32 `json:"uid"`
	Username string `json:"username"`
	Cmd      string `json:"cmd"`
	Param    string `json:"param"`
}

// NewProcessFromInfo converts a scanned process into its wire payload.
func NewProcessFromInfo(info *models.ProcessInfo) NewProcessData {
	return NewProcessData{
		PID:      info.PID,
		PPID:     info.PPID,
		UID:      info.User.UID,
		Username: info.User.Username,
		Cmd:      info.Cmd,
		Param:    info.Param,
	}
}

// Encode marshals one envelope followed by a newline.
func Encode(typ string, data interface{}) ([]byte, error) {
	if typ == TypePwn {
		return nil, fmt.Errorf("envelope type %q is reserved", typ)
	}
	line, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	return append(line, '\n'), nil
}

// File encodes a "file" record.
func File(data FileData) ([]byte, error) {
	return Encode(TypeFile, data)
}

// NewProcess encodes a "new_process" record.
func NewProcess(data NewProcessData) ([]byte, error) {
	return Encode(TypeNewProcess, data)
}

// PidList encodes a "pid_list" record. A nil list is encoded as [].
func PidList(pids []uint32) ([]byte, error) {
	if pids == nil {
		pids = []uint32{}
	}
	return Encode(TypePidList, pids)
}
