// Package userdir loads the host's user table once and answers uid lookups.
package userdir

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/sirupsen/logrus"
)

// MaxUsers is the most records a Directory keeps. Later records are dropped.
const MaxUsers = 128

// Directory is an immutable uid table. It is safe for concurrent reads.
type Directory struct {
	byUID map[uint32]models.UserRecord
}

// Load reads a passwd-format file. Failing to open it is an error; lines
// that do not parse are skipped.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database %s: %w", path, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read user database %s: %w", path, err)
	}
	legacy.L.WithFields(logrus.Fields{
		"path":  path,
		"users": d.Len(),
	}).Info("User directory loaded")
	return d, nil
}

// Parse builds a Directory from passwd-format records
// ("name:password:uid:gid:..."). When two records share a uid the first
// one wins, as with getpwuid.
func Parse(r io.Reader) (*Directory, error) {
	d := &Directory{byUID: make(map[uint32]models.UserRecord)}
	dropped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		rec, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if _, dup := d.byUID[rec.UID]; dup {
			continue
		}
		if len(d.byUID) >= MaxUsers {
			dropped++
			continue
		}
		d.byUID[rec.UID] = rec
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if dropped > 0 {
		legacy.L.WithFields(logrus.Fields{
			"limit":   MaxUsers,
			"dropped": dropped,
		}).Debug("User directory full, extra records ignored")
	}
	return d, nil
}

func parseLine(line string) (models.UserRecord, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return models.UserRecord{}, false
	}
	fields := strings.SplitN(line, ":", 5)
	if len(fields) < 4 || fields[0] == "" {
		return models.UserRecord{}, false
	}
	uid, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return models.UserRecord{}, false
	}
	gid, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return models.UserRecord{}, false
	}
	return models.UserRecord{
		UID:      uint32(uid),
		GID:      uint32(gid),
		Username: fields[0],
	}, true
}

// Lookup returns the record for uid. A miss is not an error; callers use
// the zero UserRecord instead.
func (d *Directory) Lookup(uid uint32) (models.UserRecord, bool) {
	rec, ok := d.byUID[uid]
	return rec, ok
}

// Len returns the number of records held.
func (d *Directory) Len() int {
	return len(d.byUID)
}
