package svn

import (
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/rancher/svn-action/internal/params"
)

// Kind identifies the resolved tool invocation.
type Kind string

const (
	KindCheckout      Kind = "checkout"
	KindCleanCheckout Kind = "clean_checkout"
	KindUpdate        Kind = "update"
	KindCopy          Kind = "copy"
	KindInfo          Kind = "info"
	KindVersion       Kind = "version"
)

var checkoutFlags = []string{"--non-interactive", "--trust-server-cert"}

// Invocation is a fully resolved command line. Executable and Options are
// rendered verbatim; every other part is shell-quoted.
type Invocation struct {
	Kind       Kind
	Executable string
	EnvPrefix  string
	Command    string
	Flags      []string
	Options    string
	Args       []string
}

// BuildCheckout selects between a fresh checkout, a clean checkout (the caller
// removes the existing tree first) and an in-place update.
func BuildCheckout(req params.CheckoutRequest, pathExists bool) Invocation {
	inv := Invocation{
		Kind:       KindCheckout,
		Executable: executable(req.Executable),
		EnvPrefix:  req.EnvPrefix,
		Command:    "checkout",
		Flags:      append([]string(nil), checkoutFlags...),
		Options:    req.Options,
		Args:       []string{req.URL, req.Path},
	}

	switch {
	case pathExists && req.CleanWorkingCopy:
		inv.Kind = KindCleanCheckout
	case pathExists:
		inv.Kind = KindUpdate
		inv.Command = "update"
		inv.Args = []string{req.Path}
	}

	return inv
}

// BuildCopy renders "copy <options> source [-r revision] destination [-m message]".
func BuildCopy(req params.CopyRequest) Invocation {
	args := []string{req.Source}
	if req.Revision != "" {
		args = append(args, "-r", req.Revision)
	}
	args = append(args, req.Destination)
	if req.Message != "" {
		args = append(args, "-m", req.Message)
	}

	return Invocation{
		Kind:       KindCopy,
		Executable: executable(req.Executable),
		EnvPrefix:  req.EnvPrefix,
		Command:    "copy",
		Options:    req.Options,
		Args:       args,
	}
}

// BuildInfo queries the working copy at path.
func BuildInfo(envPrefix, exe, path string) Invocation {
	return Invocation{
		Kind:       KindInfo,
		Executable: executable(exe),
		EnvPrefix:  envPrefix,
		Command:    "info",
		Args:       []string{path},
	}
}

// BuildVersion asks the executable for its version.
func BuildVersion(envPrefix, exe string) Invocation {
	return Invocation{
		Kind:       KindVersion,
		Executable: executable(exe),
		EnvPrefix:  envPrefix,
		Command:    "--version",
	}
}

// Script renders the invocation as a single shell line.
func (i Invocation) Script() string {
	parts := make([]string, 0, 3+len(i.Flags)+len(i.Args))
	parts = append(parts, executable(i.Executable), i.Command)
	for _, flag := range i.Flags {
		parts = append(parts, shellQuote(flag))
	}
	if opts := strings.TrimSpace(i.Options); opts != "" {
		parts = append(parts, opts)
	}
	for _, arg := range i.Args {
		parts = append(parts, shellQuote(arg))
	}
	return i.EnvPrefix + strings.Join(parts, " ")
}

func executable(exe string) string {
	if strings.TrimSpace(exe) == "" {
		return params.DefaultExecutable
	}
	return exe
}

func shellQuote(s string) string {
	return shellescape.Quote(s)
}
