// Package types defines the shape of task functions a worker can run. A
// Service groups named methods; each method has a typed input and output so
// that spawn arguments can be decoded on the worker and results encoded back.
package types

// Service is a service interface
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}
