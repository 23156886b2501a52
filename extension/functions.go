package extension

import (
	"sort"
	"sync"

	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/protocol"
)

// Function is a resolved task function
type Function struct {
	Ref        protocol.FunctionRef
	Signature  *types.Signature
	Executable types.Executable
}

// Functions provides task function services
type Functions struct {
	services map[string]types.Service
	mux      sync.RWMutex
}

// Lookup returns a service by name
func (f *Functions) Lookup(name string) types.Service {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.services[name]
}

// Register registers a service, replacing any service with the same name
func (f *Functions) Register(service types.Service) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.services[service.Name()] = service
}

// Resolve returns the function referenced by ref
func (f *Functions) Resolve(ref protocol.FunctionRef) (*Function, error) {
	service := f.Lookup(ref.Service)
	if service == nil {
		return nil, types.NewServiceNotFoundError(ref.Service)
	}
	signature := service.Methods().Lookup(ref.Method)
	if signature == nil {
		return nil, types.NewMethodNotFoundError(ref.String())
	}
	executable, err := service.Method(ref.Method)
	if err != nil {
		return nil, err
	}
	return &Function{Ref: ref, Signature: signature, Executable: executable}, nil
}

// Refs lists every registered service.method, sorted
func (f *Functions) Refs() []string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	var result []string
	for name, service := range f.services {
		for _, signature := range service.Methods() {
			result = append(result, protocol.FunctionRef{Service: name, Method: signature.Name}.String())
		}
	}
	sort.Strings(result)
	return result
}

// NewFunctions creates a registry holding services
func NewFunctions(services ...types.Service) *Functions {
	ret := &Functions{services: make(map[string]types.Service)}
	for _, service := range services {
		if service != nil {
			ret.Register(service)
		}
	}
	return ret
}
