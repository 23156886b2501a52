package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs/file"
)

// WriteInput defines assets to write
type WriteInput struct {
	Assets []*Asset `json:"assets" required:"true" description:"assets with url and data"`
}

// WriteOutput contains written assets without data
type WriteOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// Write uploads every asset
func (s *Service) Write(ctx context.Context, input *WriteInput, output *WriteOutput) error {
	if len(input.Assets) == 0 {
		return fmt.Errorf("at least one asset is required")
	}
	for _, asset := range input.Assets {
		if asset == nil || asset.URL == "" {
			return fmt.Errorf("asset url cannot be empty")
		}
		location := resolve(ctx, asset.URL)
		if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(asset.Data)); err != nil {
			return fmt.Errorf("failed to write %s: %w", location, err)
		}
		object, err := s.fs.Object(ctx, location)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", location, err)
		}
		output.Assets = append(output.Assets, newAsset(object))
	}
	return nil
}
