package types

import (
	"context"
	"reflect"
)

type Signatures []Signature

func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Signature	method signature
type Signature struct {
	Name        string
	Description string
	Input       reflect.Type
	Output      reflect.Type
}

// NewInput returns a pointer to a zero input value
func (s *Signature) NewInput() interface{} {
	return newValue(s.Input)
}

// NewOutput returns a pointer to a zero output value
func (s *Signature) NewOutput() interface{} {
	return newValue(s.Output)
}

func newValue(t reflect.Type) interface{} {
	if t == nil {
		return &struct{}{}
	}
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}

// Executable is a function that can be executed
type Executable func(context context.Context, input, output interface{}) error
