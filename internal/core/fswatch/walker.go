package fswatch

import (
	"io/fs"
	"path/filepath"

	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/sirupsen/logrus"
)

// walkDirs returns root followed by every directory below it, parents before
// children. Symbolic links are not followed. Subdirectories that cannot be
// read are skipped; only a failure on root itself is returned.
func walkDirs(root string) ([]string, error) {
	root = filepath.Clean(root)
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			legacy.L.WithFields(logrus.Fields{"path": path}).WithError(err).Debug("Skipping unreadable directory")
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
