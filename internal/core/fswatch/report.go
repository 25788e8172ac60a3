package fswatch

import (
	"encoding/base64"
	"io"
	"os"

	"github.com/DasSecurity-HatLab/roundworm/pkg/events"
)

// MaxContentSize is the ceiling for inline file content. Only regular files
// strictly smaller than this carry their bytes in the record.
const MaxContentSize = 4096

// inspect builds the file record for path. A path that is gone by now still
// produces a record, with zero mode and size.
func inspect(path string, mask uint32) events.FileData {
	data := events.FileData{
		Path:  path,
		Event: int32(mask),
	}

	info, err := os.Stat(path)
	if err != nil {
		return data
	}
	data.Mode = unixMode(info)
	data.Size = info.Size()

	if !info.Mode().IsRegular() || info.Size() >= MaxContentSize {
		return data
	}

	content, err := readHead(path, MaxContentSize)
	if err != nil {
		return data
	}
	data.Content = base64.StdEncoding.EncodeToString(content)
	return data
}

func readHead(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
