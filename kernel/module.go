package kernel

import "fmt"

// A Module is the port surface of a device under test: a named, ordered
// collection of signals.
type Module struct {
	k      *Kernel
	name   string
	ports  []*Signal
	byName map[string]*Signal
}

// NewModule creates an empty module.
func (k *Kernel) NewModule(name string) *Module {
	return &Module{
		k:      k,
		name:   name,
		byName: make(map[string]*Signal),
	}
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// AddPort creates a new signal and exposes it as a port of the module.
func (m *Module) AddPort(name string, width int, dir Direction) *Signal {
	s := m.k.NewSignal(name, width, dir)
	m.Bind(s)

	return s
}

// Bind exposes an existing signal, such as the kernel clock, as a port.
func (m *Module) Bind(s *Signal) {
	if _, found := m.byName[s.name]; found {
		panic(fmt.Sprintf("module %s: duplicate port %s", m.name, s.name))
	}

	m.ports = append(m.ports, s)
	m.byName[s.name] = s
}

// Ports returns the ports in declaration order.
func (m *Module) Ports() []*Signal {
	return m.ports
}

// Port returns the port with the given name, or nil.
func (m *Module) Port(name string) *Signal {
	return m.byName[name]
}
