// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sdsu-shell is an interactive shell for an SDSU controller.
//
// The shell either drives a local controller described by a configuration
// file, or sends its commands to a remote sdsu-srv.
//
// Usage:
//
//	$> sdsu-shell -cfg sdsu.yaml
//	sdsu> tdl tim 0x42
//	ok value=66 (0x42)
//	sdsu> rdm util y 0x20
//	ok value=0 (0x0)
//	sdsu> fw-move 3
//	ok value=3 (0x3)
//
//	$> sdsu-shell -addr localhost:8877
package main // import "github.com/go-lpc/sdsu/cmd/sdsu-shell"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-lpc/sdsu/config"
	"github.com/go-lpc/sdsu/ctl"
)

func main() {
	log.SetPrefix("sdsu-shell: ")
	log.SetFlags(0)

	var (
		fname = flag.String("cfg", "", "path to a YAML configuration file")
		addr  = flag.String("addr", "", "address of a remote sdsu-srv")
	)

	flag.Parse()

	r, err := newRunner(*fname, *addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer r.Close()

	err = run(r)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type runner interface {
	Run(name string, args ctl.Args) ctl.Reply
	Close() error
}

func newRunner(fname, addr string) (runner, error) {
	if addr != "" {
		cli, err := ctl.Dial(addr)
		if err != nil {
			return nil, err
		}
		return &remote{cli}, nil
	}

	cfg, err := config.Load(fname)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}
	setup, err := cfg.Open(nil)
	if err != nil {
		return nil, fmt.Errorf("could not open controller: %w", err)
	}
	return &local{
		Handler: ctl.NewHandler(setup.DSP, setup.Wheel, nil),
		setup:   setup,
	}, nil
}

type local struct {
	*ctl.Handler
	setup *config.Setup
}

func (l *local) Close() error { return l.setup.Close() }

type remote struct {
	cli *ctl.Client
}

func (r *remote) Run(name string, args ctl.Args) ctl.Reply {
	rep, err := r.cli.Send(name, args)
	if err != nil {
		return ctl.Reply{Msg: err.Error()}
	}
	return rep
}

func (r *remote) Close() error { return r.cli.Close() }

func run(r runner) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hist := historyFile()
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("sdsu> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)
		if !eval(r, line, os.Stdout) {
			return nil
		}
	}
}

// eval runs the command line and reports whether the shell should go on.
func eval(r runner, line string, w io.Writer) bool {
	switch cmd := strings.TrimSpace(line); cmd {
	case "quit", "exit":
		return false
	case "help", "?":
		for _, name := range ctl.Commands() {
			fmt.Fprintln(w, ctl.Usage(name))
		}
		return true
	}

	name, args, err := ctl.ParseLine(line)
	if err != nil {
		fmt.Fprintf(w, "%+v\n", err)
		if u := ctl.Usage(name); u != "" {
			fmt.Fprintf(w, "usage: %s\n", u)
		}
		return true
	}
	fmt.Fprintln(w, r.Run(name, args))
	return true
}

func complete(line string) []string {
	var out []string
	for _, name := range append(ctl.Commands(), "help", "quit") {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	return out
}

func historyFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".sdsu_history")
}
