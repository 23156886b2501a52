package types

import (
	"errors"
	"fmt"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrMethodNotFound  = errors.New("method not found")
	ErrInvalidInput    = errors.New("invalid input")
)

func NewServiceNotFoundError(name string) error {
	return fmt.Errorf("%w: %v", ErrServiceNotFound, name)
}

func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("%w: %v", ErrMethodNotFound, name)
}

func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("%w: %T", ErrInvalidInput, in)
}

func NewInvalidOutputError(in interface{}) error {
	return fmt.Errorf("invalid output %T", in)
}
