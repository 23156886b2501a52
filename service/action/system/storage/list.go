package storage

import (
	"context"
	"fmt"

	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
)

// ListInput defines parameters for listing assets
type ListInput struct {
	URL       string `json:"url" required:"true" description:"location to list; relative to the task scratch directory"`
	Recursive bool   `json:"recursive,omitempty" description:"list nested directories"`
}

// ListOutput contains listed assets, the listed location excluded
type ListOutput struct {
	Assets []*Asset `json:"assets,omitempty"`
}

// List lists assets at input.URL
func (s *Service) List(ctx context.Context, input *ListInput, output *ListOutput) error {
	if input.URL == "" {
		return fmt.Errorf("url is required")
	}
	location := resolve(ctx, input.URL)
	var options []storage.Option
	if input.Recursive {
		options = append(options, option.NewRecursive(true))
	}
	objects, err := s.fs.List(ctx, location, options...)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", location, err)
	}
	for i, object := range objects {
		if i == 0 && object.IsDir() {
			continue
		}
		output.Assets = append(output.Assets, newAsset(object))
	}
	return nil
}
