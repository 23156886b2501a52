package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/viant/afs/url"
)

// ReadInput defines assets to read
type ReadInput struct {
	URLs        []string `json:"urls" required:"true" description:"asset locations"`
	IncludeData bool     `json:"includeData,omitempty" description:"include asset content in the result"`
	Dest        string   `json:"dest,omitempty" description:"directory each asset is copied into"`
}

// ReadOutput contains read assets
type ReadOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// Read returns asset metadata and optionally content, copying assets to Dest when set
func (s *Service) Read(ctx context.Context, input *ReadInput, output *ReadOutput) error {
	if len(input.URLs) == 0 {
		return fmt.Errorf("at least one url is required")
	}
	dest := resolve(ctx, input.Dest)
	for _, location := range input.URLs {
		if location == "" {
			continue
		}
		location = resolve(ctx, location)
		object, err := s.fs.Object(ctx, location)
		if err != nil {
			return fmt.Errorf("asset %s: %w", location, err)
		}
		if object.IsDir() {
			return fmt.Errorf("asset %s is a directory, use list", location)
		}
		asset := newAsset(object)
		if input.IncludeData {
			if asset.Data, err = s.fs.DownloadWithURL(ctx, location); err != nil {
				return fmt.Errorf("failed to read %s: %w", location, err)
			}
		}
		if dest != "" {
			target := url.Join(dest, path.Base(url.Path(location)))
			if err = s.fs.Copy(ctx, location, target); err != nil {
				return fmt.Errorf("failed to copy %s to %s: %w", location, target, err)
			}
		}
		output.Assets = append(output.Assets, asset)
	}
	return nil
}
