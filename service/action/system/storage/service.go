// Package storage lets tasks list, read and write files on any viant/afs
// backend. Relative locations resolve against the task scratch directory.
package storage

import (
	"context"
	"reflect"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/runtime/task"
)

// Name is the service name used in function refs, e.g. "system/storage.read"
const Name = "system/storage"

// Service provides file operations to spawned tasks
type Service struct {
	fs afs.Service
}

// New creates a storage service; a nil fs uses afs.New()
func New(fs afs.Service) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "list",
			Description: "Lists assets under a location.",
			Input:       reflect.TypeOf(&ListInput{}),
			Output:      reflect.TypeOf(&ListOutput{}),
		},
		{
			Name:        "read",
			Description: "Reads assets, optionally copying them to a destination.",
			Input:       reflect.TypeOf(&ReadInput{}),
			Output:      reflect.TypeOf(&ReadOutput{}),
		},
		{
			Name:        "write",
			Description: "Writes asset data to its location.",
			Input:       reflect.TypeOf(&WriteInput{}),
			Output:      reflect.TypeOf(&WriteOutput{}),
		},
	}
}

// Method returns method by name
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "list":
		return s.list, nil
	case "read":
		return s.read, nil
	case "write":
		return s.write, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) list(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ListInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ListOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.List(ctx, input, output)
}

func (s *Service) read(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ReadInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ReadOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Read(ctx, input, output)
}

func (s *Service) write(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*WriteInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*WriteOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Write(ctx, input, output)
}

// resolve joins a relative location with the task scratch directory
func resolve(ctx context.Context, location string) string {
	if location == "" || !url.IsRelative(location) {
		return location
	}
	taskContext := task.FromContext(ctx)
	if taskContext == nil || taskContext.Handle == "" {
		return location
	}
	return url.Join(taskContext.Handle, location)
}
