// Command scrub sanitizes a telemetry event read from a file or stdin and
// prints the result. With -hash-password it instead prints the scrypt hash
// of a password read from stdin, for ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/andersoncleaning/telemetry/internal/alert"
	"github.com/andersoncleaning/telemetry/internal/crypto"
	"github.com/andersoncleaning/telemetry/internal/event"
	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/pii"
	"github.com/andersoncleaning/telemetry/internal/policy"
)

// exitDropped is the status when the policy drops the event.
const exitDropped = 2

func main() {
	logging.InitializeWriter(os.Stderr)

	var (
		policyFile   = flag.String("policy", "", "policy YAML file (default built-in rules)")
		rulesName    = flag.String("rules", "server", "rule set to apply: server or browser")
		environment  = flag.String("env", "production", "environment used for development-only rules")
		noPolicy     = flag.Bool("no-policy", false, "sanitize without applying drop rules")
		hashPassword = flag.Bool("hash-password", false, "hash a password read from stdin")
		salt         = flag.String("salt", "", "salt for -hash-password")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: scrub [flags] [event.json]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *hashPassword {
		if err := printHash(os.Stdin, os.Stdout, *salt); err != nil {
			slog.Error("failed to hash password", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("failed to open event", slog.Any("error", err))
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	var filter *policy.Filter
	if !*noPolicy {
		var err error
		filter, err = loadFilter(*policyFile, *rulesName, *environment)
		if err != nil {
			slog.Error("failed to load policy", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dropped, err := run(in, os.Stdout, filter)
	if err != nil {
		slog.Error("failed to scrub event", slog.Any("error", err))
		os.Exit(1)
	}
	if dropped {
		os.Exit(exitDropped)
	}
}

func loadFilter(path, rulesName, environment string) (*policy.Filter, error) {
	file, err := policy.Load(path)
	if err != nil {
		return nil, err
	}
	switch rulesName {
	case "server":
		return policy.NewFilter(file.Server, environment)
	case "browser":
		return policy.NewFilter(file.Browser, environment)
	default:
		return nil, fmt.Errorf("unknown rule set %q", rulesName)
	}
}

// run sanitizes one event from in and writes it to out. It reports true,
// writing nothing, when filter drops the event.
func run(in io.Reader, out io.Writer, filter *policy.Filter) (bool, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return false, err
	}
	e, err := event.ParseEvent(data)
	if err != nil {
		return false, err
	}

	if reason, drop := filter.Drop(e); drop {
		slog.Info("event dropped by policy", slog.String("reason", reason), slog.String("event_id", e.ID()))
		return true, nil
	}

	clean := pii.Sanitize(e)
	slog.Debug("event sanitized",
		slog.String("event_id", clean.ID()),
		slog.String("fingerprint", alert.Fingerprint(clean)),
	)

	b, err := event.Marshal(clean.Map)
	if err != nil {
		return false, err
	}
	_, err = fmt.Fprintf(out, "%s\n", b)
	return false, err
}

func printHash(in io.Reader, out io.Writer, salt string) error {
	if salt == "" {
		return fmt.Errorf("-salt is required")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("empty password")
	}
	hash, err := crypto.HashWithScrypt(password, salt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
