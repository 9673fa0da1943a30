// Package port classifies the ports of a device under test and finds bus
// signals by naming convention.
package port

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/kernel"
)

// A ConfigError reports a port or bus the test needs but the device does not
// have.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Name, e.Reason)
}

// Role is the direction of a bus seen from the device.
type Role int

const (
	// RoleInput is a bus the device receives on.
	RoleInput Role = iota
	// RoleOutput is a bus the device sends on.
	RoleOutput
)

func (r Role) String() string {
	if r == RoleOutput {
		return "output"
	}

	return "input"
}

// A Template is a naming convention for bus signals. The placeholders
// {name}, {signal} and {prefix} are replaced by the bus name, the signal
// name, and InPrefix or OutPrefix depending on the signal direction.
type Template struct {
	Pattern   string
	InPrefix  string
	OutPrefix string
}

// DefaultTemplates are tried in order.
var DefaultTemplates = []Template{
	{Pattern: "{name}_{signal}"},
	{Pattern: "{prefix}_{name}_{signal}", InPrefix: "i", OutPrefix: "o"},
	{Pattern: "{prefix}_{name}_{signal}", InPrefix: "in", OutPrefix: "out"},
	{Pattern: "{name}_{signal}_{prefix}", InPrefix: "i", OutPrefix: "o"},
	{Pattern: "{name}_{signal}_{prefix}", InPrefix: "in", OutPrefix: "out"},
}

func (t Template) expand(name, signal string, dir kernel.Direction) string {
	prefix := t.InPrefix
	if dir == kernel.Output {
		prefix = t.OutPrefix
	}

	r := strings.NewReplacer("{name}", name, "{signal}", signal, "{prefix}", prefix)

	return r.Replace(t.Pattern)
}

// A Directory holds the ports of a device by direction.
type Directory struct {
	inputs    map[string]*kernel.Signal
	outputs   map[string]*kernel.Signal
	inouts    map[string]*kernel.Signal
	templates []Template
}

// Discover classifies ports by their declared direction and logs each of
// them. Ports without a direction are ignored.
func Discover(ports []*kernel.Signal, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Directory{
		inputs:    make(map[string]*kernel.Signal),
		outputs:   make(map[string]*kernel.Signal),
		inouts:    make(map[string]*kernel.Signal),
		templates: DefaultTemplates,
	}

	for _, p := range ports {
		switch p.Direction() {
		case kernel.Input:
			d.inputs[p.Name()] = p
		case kernel.Output:
			d.outputs[p.Name()] = p
		case kernel.InOut:
			d.inouts[p.Name()] = p
		default:
			continue
		}

		logger.Info("port", "name", p.Name(), "dir", p.Direction(), "width", p.Width())
	}

	return d
}

// WithTemplates returns a copy of the directory that uses the given naming
// conventions.
func (d *Directory) WithTemplates(templates []Template) *Directory {
	c := *d
	c.templates = templates

	return &c
}

// Names returns the sorted names of the ports with the given direction.
func (d *Directory) Names(dir kernel.Direction) []string {
	var m map[string]*kernel.Signal

	switch dir {
	case kernel.Input:
		m = d.inputs
	case kernel.Output:
		m = d.outputs
	case kernel.InOut:
		m = d.inouts
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ResolveSignal finds a port by name in any direction.
func (d *Directory) ResolveSignal(name string) (*kernel.Signal, error) {
	for _, m := range []map[string]*kernel.Signal{d.inputs, d.outputs, d.inouts} {
		if s, found := m[name]; found {
			return s, nil
		}
	}

	return nil, &ConfigError{Name: name, Reason: "no such port"}
}

// ResolveBus finds the data, valid and ready signals of a bus. Data and valid
// point in the direction of the role and ready in the opposite one.
func (d *Directory) ResolveBus(name string, role Role) (bus.Bus, error) {
	forward, backward := kernel.Input, kernel.Output
	if role == RoleOutput {
		forward, backward = kernel.Output, kernel.Input
	}

	for _, t := range d.templates {
		data := d.lookup(t.expand(name, "data", forward), forward)
		valid := d.lookup(t.expand(name, "valid", forward), forward)
		ready := d.lookup(t.expand(name, "ready", backward), backward)

		if data != nil && valid != nil && ready != nil {
			return bus.Bus{
				Name:  name,
				Data:  data,
				Valid: valid,
				Ready: ready,
			}, nil
		}
	}

	return bus.Bus{}, &ConfigError{
		Name:   name,
		Reason: fmt.Sprintf("no naming convention resolves an %s bus", role),
	}
}

func (d *Directory) lookup(name string, dir kernel.Direction) *kernel.Signal {
	m := d.inputs
	if dir == kernel.Output {
		m = d.outputs
	}

	if s, found := m[name]; found {
		return s
	}

	return d.inouts[name]
}
