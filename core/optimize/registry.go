package optimize

import (
	"errors"
	"fmt"

	"github.com/kilianp07/microgrid/core/factory"
	"github.com/kilianp07/microgrid/core/logger"
)

var registry = factory.NewRegistry[Optimizer]()

func init() {
	_ = Register("cuckoo", func(conf map[string]any) (Optimizer, error) {
		if err := factory.RequireKeys(conf, "max_iter", "n_nests", "alpha0", "beta"); err != nil {
			return nil, fmt.Errorf("%w: cuckoo: %v", ErrInvalidConfiguration, err)
		}
		o := DefaultCuckooOptions()
		if err := factory.DecodeStrict(conf, &o); err != nil {
			return nil, fmt.Errorf("%w: cuckoo: %v", ErrInvalidConfiguration, err)
		}
		cs, err := NewCuckooSearch(o)
		if err != nil {
			return nil, err
		}
		return cs, nil
	})

	_ = Register("pso", func(conf map[string]any) (Optimizer, error) {
		if err := factory.RequireKeys(conf, "max_iter", "n_particles", "w", "w_damp", "c1", "c2", "vel_max"); err != nil {
			return nil, fmt.Errorf("%w: pso: %v", ErrInvalidConfiguration, err)
		}
		o := DefaultPSOOptions()
		if err := factory.DecodeStrict(conf, &o); err != nil {
			return nil, fmt.Errorf("%w: pso: %v", ErrInvalidConfiguration, err)
		}
		ps, err := NewParticleSwarm(o)
		if err != nil {
			return nil, err
		}
		return ps, nil
	})
}

// Register adds an optimizer factory identified by name.
func Register(name string, f factory.Factory[Optimizer]) error {
	return registry.Register(name, f)
}

// Solvers returns the registered optimizer names.
func Solvers() []string { return registry.Types() }

// New creates the optimizer described by cfg. The logger may be nil.
func New(cfg factory.ModuleConfig, log logger.Logger) (Optimizer, error) {
	if cfg.Conf == nil {
		cfg.Conf = map[string]any{}
	}
	opt, err := registry.Create(cfg)
	if err != nil {
		if errors.Is(err, ErrInvalidConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if ls, ok := opt.(loggerSetter); ok {
		ls.SetLogger(log)
	}
	return opt, nil
}
