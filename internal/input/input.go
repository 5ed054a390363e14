// ABOUTME: Receiver front-end registry
// ABOUTME: Hardware backends register themselves from build-tagged files; none ship in the default build
package input

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dabdump/dabdump/internal/dab"
)

// AutoFrontend picks the first backend that opens
const AutoFrontend = "auto"

// ErrDeviceUnavailable is returned when no front-end can be opened
var ErrDeviceUnavailable = errors.New("no input device available")

// Options configure a front-end and the demodulator behind it
type Options struct {
	Frontend string
	Args     string

	DisableCoarseCorrector bool
	DecodeTII              bool
}

// Device is a live receiver: an engine plus a tunable front-end
type Device interface {
	dab.Receiver
	dab.Tuner
}

// Backend opens a device delivering controller events to controller
type Backend func(opts Options, controller dab.ControllerHandler) (Device, error)

var (
	mu       sync.Mutex
	backends = make(map[string]Backend)
)

// Register makes a backend available under name. Registering a name twice
// replaces the earlier backend.
func Register(name string, b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends[name] = b
}

// Backends lists the registered backend names in sorted order
func Backends() []string {
	mu.Lock()
	defer mu.Unlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the front-end named in opts, or every registered one in turn
// for AutoFrontend. Errors wrap ErrDeviceUnavailable.
func Open(opts Options, controller dab.ControllerHandler) (Device, error) {
	name := opts.Frontend
	if name == "" {
		name = AutoFrontend
	}

	if name != AutoFrontend {
		mu.Lock()
		b, ok := backends[name]
		mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: frontend %q not built in (available: %v)", ErrDeviceUnavailable, name, Backends())
		}

		dev, err := b(opts, controller)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, name, err)
		}
		return dev, nil
	}

	var errs []error
	for _, n := range Backends() {
		mu.Lock()
		b := backends[n]
		mu.Unlock()

		dev, err := b(opts, controller)
		if err == nil {
			return dev, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", n, err))
	}

	if len(errs) == 0 {
		return nil, ErrDeviceUnavailable
	}
	return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, errors.Join(errs...))
}
