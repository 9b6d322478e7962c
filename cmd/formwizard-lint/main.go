package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/spf13/pflag"

	"github.com/goliatone/go-formwizard/pkg/formdef"
)

func main() {
	flags := pflag.NewFlagSet("formwizard-lint", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [paths...]\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "\nCheck form definition files or directories. With no paths the embedded forms are checked.\n")
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	paths := flags.Args()
	if len(paths) == 0 {
		if _, err := formdef.LoadFS(formdef.EmbeddedFS()); err != nil {
			report("embedded", err)
			os.Exit(1)
		}
		fmt.Println("embedded: ok")
		return
	}

	failed := false
	for _, path := range paths {
		reg, err := lintPath(path)
		if err != nil {
			report(path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d form(s) ok\n", path, len(reg.IDs()))
	}
	if failed {
		os.Exit(1)
	}
}

func lintPath(path string) (*formdef.Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return formdef.LoadFS(os.DirFS(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return formdef.LoadFS(fstest.MapFS{filepath.Base(path): {Data: data}})
}

// report prints each joined problem on its own line.
func report(path string, err error) {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, e)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
}
