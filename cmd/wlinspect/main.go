// Command wlinspect prints protocol interface tables and decodes single
// message frames given in hex.
//
//	wlinspect [-config file.toml] [-protocol defs.toml] [-log-level lvl] list
//	wlinspect [...] decode -interface NAME [-dir request|event] HEX
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
	"github.com/ngrok/wlcommons/core"
	"github.com/ngrok/wlcommons/protodef"
	"github.com/ngrok/wlcommons/wire"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "wlinspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("wlinspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path of a TOML config file")
	protocol := fs.String("protocol", "", "path of a TOML protocol definition (default: core interfaces)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error or crit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath, cfg); err != nil {
			return err
		}
	}
	if *protocol != "" {
		cfg.protocol = *protocol
	}
	if *logLevel != "" {
		lvl, err := log15.LvlFromString(*logLevel)
		if err != nil {
			return errors.Wrap(err, "parse -log-level")
		}
		cfg.logLevel = lvl
	}

	l := log15.New("cmd", "wlinspect")
	l.SetHandler(log15.LvlFilterHandler(cfg.logLevel, log15.StreamHandler(stderr, log15.LogfmtFormat())))

	ifaces, err := loadInterfaces(cfg.protocol)
	if err != nil {
		return err
	}
	l.Debug("loaded interfaces", "protocol", cfg.protocol, "count", len(ifaces))

	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("missing command: list or decode")
	}
	switch rest[0] {
	case "list":
		return list(stdout, ifaces)
	case "decode":
		return decode(rest[1:], stdout, stderr, l, ifaces)
	default:
		return errors.Errorf("unknown command %q", rest[0])
	}
}

func loadInterfaces(path string) ([]*wl.Interface, error) {
	if path == "" {
		return []*wl.Interface{core.Callback, core.Display, core.Registry}, nil
	}
	p, err := protodef.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Interfaces(), nil
}

func list(w io.Writer, ifaces []*wl.Interface) error {
	for _, iface := range ifaces {
		fmt.Fprintf(w, "%s v%d\n", iface.Name, iface.Version)
		for _, dir := range []wl.Direction{wl.Request, wl.Event} {
			for op, m := range iface.Messages(dir) {
				fmt.Fprintf(w, "  %-7s %2d %s since %d (%s)", dir, op, m.Name, m.Since, signature(m.Signature))
				if m.ChildInterface != nil {
					fmt.Fprintf(w, " -> %s", m.ChildInterface.Name)
				}
				if m.IsDestructor {
					fmt.Fprint(w, " destructor")
				}
				fmt.Fprintln(w)
			}
		}
	}
	return nil
}

func signature(sig []wl.ArgumentType) string {
	names := make([]string, len(sig))
	for i, t := range sig {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

func decode(args []string, stdout, stderr io.Writer, l log15.Logger, ifaces []*wl.Interface) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ifaceName := fs.String("interface", "", "interface of the object the message is addressed to or sent by")
	dirName := fs.String("dir", "request", "message direction: request or event")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("decode: missing hex frame")
	}

	var iface *wl.Interface
	for _, candidate := range ifaces {
		if candidate.Name == *ifaceName {
			iface = candidate
		}
	}
	if iface == nil {
		return errors.Errorf("decode: unknown interface %q", *ifaceName)
	}
	var dir wl.Direction
	switch *dirName {
	case "request":
		dir = wl.Request
	case "event":
		dir = wl.Event
	default:
		return errors.Errorf("decode: unknown direction %q", *dirName)
	}

	data, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(fs.Args(), "")), ""))
	if err != nil {
		return errors.Wrap(err, "decode: invalid hex")
	}
	h, body, rest, ok, err := wire.SplitFrame(data)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(wl.ErrMalformedPayload, "decode: incomplete frame of %d bytes", len(data))
	}
	if len(rest) > 0 {
		l.Warn("ignoring bytes after the first frame", "bytes", len(rest))
	}

	desc, err := iface.Message(dir, h.Opcode)
	if err != nil {
		return err
	}
	// descriptors never appear in a hex dump; stand in for them
	fds := make([]int, desc.FdCount())
	for i := range fds {
		fds[i] = -1
	}
	decoded, _, err := wire.DecodeMessage[wl.ObjectID](body, fds, wire.PlainIDs{}, desc)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s %s.%s %s\n", h, iface.Name, desc.Name, dir)
	for pos, arg := range decoded {
		if v, ok := arg.Fixed(); ok {
			fmt.Fprintf(stdout, "  %d: %v = %g\n", pos, arg, wire.FixedToFloat64(v))
			continue
		}
		fmt.Fprintf(stdout, "  %d: %v\n", pos, arg)
	}
	return nil
}
