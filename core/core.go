// Package core declares the interface tables of the core protocol objects
// every connection starts with: the display singleton (object 1), the
// registry it hands out and the one-shot callback.
package core

import (
	wl "github.com/ngrok/wlcommons"
)

// DisplayID is the id of the display object, which exists from the start of
// every connection.
const DisplayID = 1

// Display error codes carried by Display's error event.
const (
	ErrorInvalidObject uint32 = iota
	ErrorInvalidMethod
	ErrorNoMemory
	ErrorImplementation
)

// Display opcodes.
const (
	DisplaySync        uint16 = 0
	DisplayGetRegistry uint16 = 1

	DisplayError    uint16 = 0
	DisplayDeleteID uint16 = 1
)

// Registry and Callback opcodes.
const (
	RegistryGlobal       uint16 = 0
	RegistryGlobalRemove uint16 = 1

	CallbackDone uint16 = 0
)

// Display is the wl_display interface.
var Display = &wl.Interface{
	Name:    "wl_display",
	Version: 1,
	Requests: []wl.MessageDesc{
		{
			Name:           "sync",
			Since:          1,
			Signature:      []wl.ArgumentType{wl.TypeNewID},
			ChildInterface: Callback,
		},
		{
			Name:           "get_registry",
			Since:          1,
			Signature:      []wl.ArgumentType{wl.TypeNewID},
			ChildInterface: Registry,
		},
	},
	Events: []wl.MessageDesc{
		{
			Name:      "error",
			Since:     1,
			Signature: []wl.ArgumentType{wl.TypeObject, wl.TypeUint, wl.TypeStr},
		},
		{
			Name:      "delete_id",
			Since:     1,
			Signature: []wl.ArgumentType{wl.TypeUint},
		},
	},
}

// Registry is the wl_registry interface, without its bind request: bind
// creates objects of whatever interface the client names at runtime, which a
// static child interface cannot describe. Runtimes handle it outside these
// tables.
var Registry = &wl.Interface{
	Name:    "wl_registry",
	Version: 1,
	Events: []wl.MessageDesc{
		{
			Name:      "global",
			Since:     1,
			Signature: []wl.ArgumentType{wl.TypeUint, wl.TypeStr, wl.TypeUint},
		},
		{
			Name:      "global_remove",
			Since:     1,
			Signature: []wl.ArgumentType{wl.TypeUint},
		},
	},
}

// Callback is the wl_callback interface.
var Callback = &wl.Interface{
	Name:    "wl_callback",
	Version: 1,
	Events: []wl.MessageDesc{
		{
			Name:         "done",
			Since:        1,
			IsDestructor: true,
			Signature:    []wl.ArgumentType{wl.TypeUint},
		},
	},
}

// Interfaces lists the core tables by name.
var Interfaces = map[string]*wl.Interface{
	Display.Name:  Display,
	Registry.Name: Registry,
	Callback.Name: Callback,
}

func init() {
	wl.MustValidate(Display, Registry, Callback)
}
