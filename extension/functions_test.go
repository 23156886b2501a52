package extension

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/protocol"
)

type echoService struct{}

type echoInput struct{ Text string }

type echoOutput struct{ Text string }

func (e *echoService) Name() string { return "echo" }

func (e *echoService) Methods() types.Signatures {
	return types.Signatures{{Name: "say", Input: reflect.TypeOf(&echoInput{}), Output: reflect.TypeOf(&echoOutput{})}}
}

func (e *echoService) Method(name string) (types.Executable, error) {
	if name != "say" {
		return nil, types.NewMethodNotFoundError(name)
	}
	return func(ctx context.Context, in, out interface{}) error {
		out.(*echoOutput).Text = in.(*echoInput).Text
		return nil
	}, nil
}

func TestFunctions_Resolve(t *testing.T) {
	functions := NewFunctions(&echoService{}, nil)
	assert.Equal(t, []string{"echo.say"}, functions.Refs())

	fn, err := functions.Resolve(protocol.FunctionRef{Service: "echo", Method: "say"})
	assert.NoError(t, err)
	input := fn.Signature.NewInput().(*echoInput)
	input.Text = "hi"
	output := fn.Signature.NewOutput()
	assert.NoError(t, fn.Executable(context.Background(), input, output))
	assert.Equal(t, "hi", output.(*echoOutput).Text)

	_, err = functions.Resolve(protocol.FunctionRef{Service: "missing", Method: "say"})
	assert.True(t, errors.Is(err, types.ErrServiceNotFound))
	_, err = functions.Resolve(protocol.FunctionRef{Service: "echo", Method: "shout"})
	assert.True(t, errors.Is(err, types.ErrMethodNotFound))
}
