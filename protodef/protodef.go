// Package protodef builds interface tables from protocol definitions written
// in TOML, for tools and runtimes that load protocols at startup instead of
// compiling generated tables in.
//
// A definition lists interfaces with their requests and events:
//
//	[[interface]]
//	name = "wl_display"
//	version = 1
//
//	  [[interface.request]]
//	  name = "sync"
//	  args = [{ name = "callback", type = "new_id", interface = "wl_callback" }]
//
// Argument types are spelled int, uint, fixed, string, object, new_id, array
// and fd. since defaults to 1 when absent. The interface of a new_id
// argument becomes the message's child interface and may name any interface
// of the document.
package protodef

import (
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
)

type document struct {
	Interfaces []interfaceDef `toml:"interface"`
}

type interfaceDef struct {
	Name     string       `toml:"name"`
	Version  uint32       `toml:"version"`
	Requests []messageDef `toml:"request"`
	Events   []messageDef `toml:"event"`
}

type messageDef struct {
	Name       string   `toml:"name"`
	Since      *uint32  `toml:"since"`
	Destructor bool     `toml:"destructor"`
	Args       []argDef `toml:"args"`
}

type argDef struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Interface string `toml:"interface"`
}

// Protocol is a set of interfaces loaded from one definition. The tables it
// holds are validated and must not be modified.
type Protocol struct {
	byName map[string]*wl.Interface
}

// Load reads the definition at path.
func Load(path string) (*Protocol, error) {
	var doc document
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, errors.Wrapf(err, "can't parse protocol %s", path)
	}
	p, err := build(doc, meta)
	if err != nil {
		return nil, errors.Wrapf(err, "protocol %s", path)
	}
	return p, nil
}

// Parse reads a definition from data.
func Parse(data []byte) (*Protocol, error) {
	var doc document
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse protocol")
	}
	return build(doc, meta)
}

func build(doc document, meta toml.MetaData) (*Protocol, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Wrapf(wl.ErrInvalidSchema, "unknown key %q", undecoded[0].String())
	}

	p := &Protocol{byName: make(map[string]*wl.Interface, len(doc.Interfaces))}
	// Create every interface first so that child links can point forward.
	for _, def := range doc.Interfaces {
		if def.Name == "" {
			return nil, errors.Wrap(wl.ErrInvalidSchema, "interface without a name")
		}
		if _, ok := p.byName[def.Name]; ok {
			return nil, errors.Wrapf(wl.ErrInvalidSchema, "interface %s defined twice", def.Name)
		}
		p.byName[def.Name] = &wl.Interface{Name: def.Name, Version: def.Version}
	}

	for _, def := range doc.Interfaces {
		iface := p.byName[def.Name]
		var err error
		if iface.Requests, err = p.messages(def.Name, def.Requests); err != nil {
			return nil, err
		}
		if iface.Events, err = p.messages(def.Name, def.Events); err != nil {
			return nil, err
		}
	}

	for _, iface := range p.byName {
		if err := iface.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Protocol) messages(ifaceName string, defs []messageDef) ([]wl.MessageDesc, error) {
	msgs := make([]wl.MessageDesc, 0, len(defs))
	for _, def := range defs {
		desc := wl.MessageDesc{
			Name:         def.Name,
			Since:        1,
			IsDestructor: def.Destructor,
			Signature:    make([]wl.ArgumentType, 0, len(def.Args)),
		}
		// an explicit since = 0 is kept so that validation rejects it
		if def.Since != nil {
			desc.Since = *def.Since
		}
		for _, arg := range def.Args {
			t, ok := wl.ParseArgumentType(arg.Type)
			if !ok {
				return nil, errors.Wrapf(wl.ErrInvalidSchema, "%s.%s: argument %s has unknown type %q", ifaceName, def.Name, arg.Name, arg.Type)
			}
			if arg.Interface != "" {
				child, ok := p.byName[arg.Interface]
				if !ok {
					return nil, errors.Wrapf(wl.ErrInvalidSchema, "%s.%s: argument %s names unknown interface %q", ifaceName, def.Name, arg.Name, arg.Interface)
				}
				if t == wl.TypeNewID {
					desc.ChildInterface = child
				}
			}
			desc.Signature = append(desc.Signature, t)
		}
		msgs = append(msgs, desc)
	}
	return msgs, nil
}

// Interface returns the interface called name.
func (p *Protocol) Interface(name string) (*wl.Interface, bool) {
	iface, ok := p.byName[name]
	return iface, ok
}

// Interfaces returns every interface, sorted by name.
func (p *Protocol) Interfaces() []*wl.Interface {
	ifaces := make([]*wl.Interface, 0, len(p.byName))
	for _, iface := range p.byName {
		ifaces = append(ifaces, iface)
	}
	sort.Slice(ifaces, func(i, j int) bool {
		return ifaces[i].Name < ifaces[j].Name
	})
	return ifaces
}
