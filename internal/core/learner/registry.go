package learner

import (
	"sort"
	"sync"
)

// BoostedName identifies the optional gradient-boosted backend.
const BoostedName = "boosted-stumps"

// DefaultSeed seeds committees when the caller does not.
const DefaultSeed int64 = 42

// Factory builds a committee with n members.
type Factory func(nEstimators int, seed int64) CommitteeClassifier

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an optional backend available to CreateActiveLearner.
// Backends call it from init, so linking the package is what enables it.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Available reports whether the named backend is linked in.
func Available(name string) bool {
	if name == BaselineName {
		return true
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// Backends lists every available backend name.
func Backends() []string {
	registryMu.RLock()
	names := []string{BaselineName}
	for name := range registry {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names[1:])
	return names
}

type Options struct {
	Seed int64
}

type Option func(*Options)

func WithSeed(seed int64) Option {
	return func(o *Options) { o.Seed = seed }
}

// CreateActiveLearner returns the boosted committee when preferBoosted is set
// and that backend is linked in, and the baseline ensemble otherwise.
func CreateActiveLearner(nEstimators int, preferBoosted bool, opts ...Option) CommitteeClassifier {
	o := Options{Seed: DefaultSeed}
	for _, opt := range opts {
		opt(&o)
	}
	if preferBoosted {
		registryMu.RLock()
		f, ok := registry[BoostedName]
		registryMu.RUnlock()
		if ok {
			return f(nEstimators, o.Seed)
		}
	}
	return NewEnsemble(nEstimators, o.Seed)
}
