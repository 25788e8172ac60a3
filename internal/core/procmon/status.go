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

package procmon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcessStatus holds the fields of /proc/{pid}/status the monitor reports.
type ProcessStatus struct {
	PID  uint32
	PPID uint32
	UID  uint32
	Name string
}

// ReadProcessStatus reads and parses /proc/{pid}/status. The Uid line lists
// real, effective, saved and filesystem ids; the real uid is kept.
func ReadProcessStatus(procPath string, pid uint32) (*ProcessStatus, error) {
	statusFile := filepath.Join(procPath, strconv.FormatUint(uint64(pid), 10), "status")
	data, err := os.ReadFile(statusFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	status := &ProcessStatus{PID: pid}
	var sawName bool
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Name":
			// Names may contain spaces.
			status.Name = value
			sawName = true
		case "PPid":
			if ppid, err := strconv.ParseUint(value, 10, 32); err == nil {
				status.PPID = uint32(ppid)
			}
		case "Uid":
			fields := strings.Fields(value)
			if len(fields) == 0 {
				continue
			}
			if uid, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
				status.UID = uint32(uid)
			}
		}
	}
	if !sawName {
		return nil, fmt.Errorf("status file for pid %d has no Name line", pid)
	}
	return status, nil
}
