package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/runtime/task"
)

const name = "printer"

// Service prints messages on the worker
type Service struct {
	writer io.Writer
}

// Input holds the message to print
type Input struct {
	Message string `json:"message"`
}

// Output echoes the printed line with the task that printed it
type Output struct {
	Task string `json:"task,omitempty"`
	Text string `json:"text"`
}

// New creates a printer writing to w (stdout when nil)
func New(w io.Writer) *Service {
	if w == nil {
		w = os.Stdout
	}
	return &Service{writer: w}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "print",
			Description: "Prints the given message to the worker standard output and returns it.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "print":
		return s.print, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) print(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	if taskContext := task.FromContext(ctx); taskContext != nil {
		output.Task = taskContext.ID.String()
	}
	if _, err := fmt.Fprintln(s.writer, input.Message); err != nil {
		return err
	}
	output.Text = input.Message
	return nil
}
