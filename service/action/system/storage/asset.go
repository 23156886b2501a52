package storage

import (
	"path"
	"strings"
	"time"

	"github.com/viant/afs/storage"
)

// Asset represents a file or directory
type Asset struct {
	URL         string    `json:"url"`
	Name        string    `json:"name,omitempty"`
	IsDir       bool      `json:"isDir,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Size        int64     `json:"size,omitempty"`
	ModTime     time.Time `json:"modTime,omitempty"`
	Data        []byte    `json:"data,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
}

func newAsset(object storage.Object) *Asset {
	return &Asset{
		URL:         object.URL(),
		Name:        object.Name(),
		IsDir:       object.IsDir(),
		Mode:        object.Mode().String(),
		Size:        object.Size(),
		ModTime:     object.ModTime(),
		ContentType: contentType(object.Name()),
	}
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".txt", ".log":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".gz":
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
