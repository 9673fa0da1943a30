// Package manifest resolves the HDL sources of a module and of the modules
// it depends on, as listed in a manifest file.
//
// A manifest maps module ids to their sources:
//
//	modules:
//	  keccak:
//	    path: rtl/keccak
//	    library: work
//	    files: ["*.vhdl"]
//	  polyvec_mac:
//	    path: rtl/polyvec_mac
//	    depends: keccak
//	    files: [polyvec_mac.vhdl, polyvec_mac_tb.vhdl]
//	    tb_files: polyvec_mac_tb.vhdl
//	    top: polyvec_mac
//
// Every list may also be given as a single string. JSON manifests are read
// the same way.
package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StringList is a list that may be written as a single string.
type StringList []string

// UnmarshalYAML accepts a scalar or a sequence.
func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}

		*l = StringList{s}

		return nil
	}

	var items []string
	if err := n.Decode(&items); err != nil {
		return err
	}

	*l = items

	return nil
}

type moduleEntry struct {
	Path        string           `yaml:"path"`
	Library     string           `yaml:"library"`
	VHDLVersion string           `yaml:"vhdl_version"`
	Files       StringList       `yaml:"files"`
	TbFiles     StringList       `yaml:"tb_files"`
	Depends     StringList       `yaml:"depends"`
	Top         string           `yaml:"top"`
	TbTop       string           `yaml:"tb_top"`
	TbConfigs   []map[string]any `yaml:"tb_configs"`
}

type document struct {
	Modules map[string]moduleEntry `yaml:"modules"`
}

// A Module is a set of sources compiled into one library.
type Module struct {
	Name        string
	Path        string
	Library     string
	VHDLVersion string
	Files       []string
	TbFiles     []string
	Depends     []string
	Top         string
	TbTop       string
	TbConfigs   []map[string]any
}

// A Source is a file and the library it is compiled into.
type Source struct {
	File    string
	Library string
}

// A Manifest holds the modules of a project.
type Manifest struct {
	modules map[string]*Module
}

// Load reads a manifest. Module paths are relative to the directory of the
// manifest file.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", filename)
	}

	m, err := Parse(data, filepath.Dir(filename))
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", filename)
	}

	return m, nil
}

// Parse decodes a manifest and resolves its files against baseDir. Patterns
// that match nothing and files that do not exist are errors.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}

	if len(doc.Modules) == 0 {
		return nil, errors.New("manifest has no modules")
	}

	m := &Manifest{modules: make(map[string]*Module, len(doc.Modules))}

	for name, e := range doc.Modules {
		mod, err := newModule(name, e, baseDir)
		if err != nil {
			return nil, err
		}

		m.modules[name] = mod
	}

	return m, nil
}

func newModule(name string, e moduleEntry, baseDir string) (*Module, error) {
	dir := e.Path
	if dir == "" {
		dir = "."
	}

	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}

	mod := &Module{
		Name:        name,
		Path:        dir,
		Library:     e.Library,
		VHDLVersion: e.VHDLVersion,
		Depends:     e.Depends,
		Top:         e.Top,
		TbTop:       e.TbTop,
		TbConfigs:   e.TbConfigs,
	}

	tbFiles, err := expand(dir, e.TbFiles)
	if err != nil {
		return nil, errors.Wrapf(err, "module %s", name)
	}

	files, err := expand(dir, e.Files)
	if err != nil {
		return nil, errors.Wrapf(err, "module %s", name)
	}

	isTb := make(map[string]bool, len(tbFiles))
	for _, f := range tbFiles {
		isTb[f] = true
	}

	for _, f := range files {
		if !isTb[f] {
			mod.Files = append(mod.Files, f)
		}
	}

	mod.TbFiles = tbFiles

	return mod, nil
}

func expand(dir string, items []string) ([]string, error) {
	var out []string

	for _, item := range items {
		p := filepath.Join(dir, item)

		if strings.Contains(item, "*") {
			matches, err := filepath.Glob(p)
			if err != nil {
				return nil, errors.Wrapf(err, "bad pattern %s", p)
			}

			if len(matches) == 0 {
				return nil, errors.Errorf("pattern %s did not match any files", p)
			}

			out = append(out, matches...)

			continue
		}

		if _, err := os.Stat(p); err != nil {
			return nil, errors.Errorf("file %s not found", p)
		}

		out = append(out, p)
	}

	return out, nil
}

// Names returns the sorted module ids.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Module returns the module with the given id.
func (m *Manifest) Module(name string) (*Module, error) {
	mod, found := m.modules[name]
	if !found {
		return nil, errors.Errorf("unknown module %q", name)
	}

	return mod, nil
}

// DependencyOrder returns the sources of a module and of everything it
// depends on, dependencies first. A file listed by several modules keeps its
// first position and takes the library of the module visited last.
func (m *Manifest) DependencyOrder(name string) ([]Source, error) {
	var (
		order    []Source
		position = make(map[string]int)
		visiting = make(map[string]bool)
	)

	var visit func(name string) error
	visit = func(name string) error {
		if visiting[name] {
			return errors.Errorf("dependency cycle through module %q", name)
		}

		mod, err := m.Module(name)
		if err != nil {
			return err
		}

		visiting[name] = true

		for _, dep := range mod.Depends {
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[name] = false

		for _, f := range mod.Files {
			if i, found := position[f]; found {
				order[i].Library = mod.Library
				continue
			}

			position[f] = len(order)
			order = append(order, Source{File: f, Library: mod.Library})
		}

		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}

	return order, nil
}
