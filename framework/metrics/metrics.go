// Package metrics counts container activity with Prometheus.
//
//	reg := prometheus.NewRegistry()
//	err := root.Extend(&metrics.Extension{Registerer: reg, Namespace: "shop"})
//
// Every container in the tree gets its own Collector; the root level owns the
// vectors and deeper levels report with their depth as the level label.
package metrics

import (
	"errors"
	"reflect"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/km-arc/go-ioc/framework/container"
)

// Extension installs a Collector into every container of a tree.
type Extension struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// Extend installs the Collector kind on c unless c already inherited one.
func (e *Extension) Extend(c *container.Container) error {
	if _, ok := container.TryGetExtension[*Collector](c.Extender()); ok {
		return nil
	}
	_, err := container.InstallExtension(c.Extender(), e.build)
	return err
}

func (e *Extension) build(owner *container.Container, parent *Collector, inherited bool) (*Collector, error) {
	if inherited && parent != nil {
		col := &Collector{
			owner:          owner,
			parent:         parent,
			depth:          parent.depth + 1,
			resolutions:    parent.resolutions,
			instantiations: parent.instantiations,
			containers:     parent.containers,
		}
		col.hook()
		return col, nil
	}

	reg := e.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := e.Namespace
	if ns == "" {
		ns = "ioc"
	}
	col := &Collector{owner: owner, reg: reg}
	var err error
	if col.resolutions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "container",
		Name:      "resolutions_total",
		Help:      "Successful lookups by key and container depth",
	}, []string{"key", "level"})); err != nil {
		return nil, err
	}
	if col.instantiations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "container",
		Name:      "instantiations_total",
		Help:      "Instances built by the injector by type and container depth",
	}, []string{"type", "level"})); err != nil {
		return nil, err
	}
	if col.containers, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "container",
		Name:      "containers_total",
		Help:      "Containers that received the metrics extension by depth",
	}, []string{"level"})); err != nil {
		return nil, err
	}
	col.hook()
	return col, nil
}

// register adds vec to reg, reusing an identical vector registered earlier.
func register(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

// Collector is the per-container metrics extension.
type Collector struct {
	owner  *container.Container
	parent *Collector
	depth  int
	// reg is set on the level that registered the vectors.
	reg prometheus.Registerer

	resolutions    *prometheus.CounterVec
	instantiations *prometheus.CounterVec
	containers     *prometheus.CounterVec
}

func (col *Collector) hook() {
	level := strconv.Itoa(col.depth)
	col.containers.WithLabelValues(level).Inc()
	col.owner.AfterResolving(func(key container.Key, _ any) {
		col.resolutions.WithLabelValues(key.String(), level).Inc()
	})
	col.owner.AfterInstantiating(func(t reflect.Type, _ any) {
		col.instantiations.WithLabelValues(t.String(), level).Inc()
	})
}

// Depth is 0 for the level the extension was installed on.
func (col *Collector) Depth() int { return col.depth }

// Parent returns the collector this one was seeded from.
func (col *Collector) Parent() *Collector { return col.parent }

// Resolutions exposes the resolutions_total vector.
func (col *Collector) Resolutions() *prometheus.CounterVec { return col.resolutions }

// Instantiations exposes the instantiations_total vector.
func (col *Collector) Instantiations() *prometheus.CounterVec { return col.instantiations }

// Close unregisters the vectors when called on the registering level.
func (col *Collector) Close() error {
	if col.reg == nil {
		return nil
	}
	col.reg.Unregister(col.resolutions)
	col.reg.Unregister(col.instantiations)
	col.reg.Unregister(col.containers)
	return nil
}
