// Command didauth runs the DID authentication server and provides the client
// side tooling: issuing identities, signing requests, verifying signatures and
// managing local key files.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/keys"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit code through cobra's error return. A nil
// err means the command already reported what it needed to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	root := newRootCmd(os.Getenv)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			printError(errOut, ee.err)
		}
		return ee.code
	}
	printError(errOut, err)
	return 1
}

// printError prefixes structured rejections with their rule identifier.
func printError(w io.Writer, err error) {
	if rule := autherr.RuleID(err); rule != "" {
		fmt.Fprintf(w, "%s: %v\n", rule, err)
		return
	}
	fmt.Fprintln(w, err)
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath    string
	envFile       string
	keyDir        string
	askPassphrase bool

	getenv func(string) string
}

func (g *globalFlags) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(g.keyDir)
}

// passphrase reads the key-file passphrase from the environment variable
// named by envName, or from the terminal with --ask-passphrase. Neither
// means no passphrase.
func (g *globalFlags) passphrase(envName string) (string, error) {
	if envName == "" {
		if g.askPassphrase {
			return promptPassphrase(os.Stdin, os.Stderr)
		}
		return "", nil
	}
	v := g.getenv(envName)
	if v == "" {
		return "", usageError("environment variable %s is empty or unset", envName)
	}
	return v, nil
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	g := &globalFlags{getenv: getenv}

	cmd := &cobra.Command{
		Use:   "didauth",
		Short: "Passwordless authentication with did:key identities",
		Long: `didauth authenticates users by decentralized identifiers derived from
keypairs. A client proves control of its key by signing a message; the server
checks the signature against the public key embedded in the DID.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	pf.StringVar(&g.keyDir, "key-dir", "", "key store directory (default $DIDAUTH_KEY_DIR or ~/.didauth/keys)")
	pf.BoolVar(&g.askPassphrase, "ask-passphrase", false, "prompt for the key-file passphrase when --passphrase-env is not given")

	cmd.AddCommand(
		newServeCmd(g),
		newIssueCmd(g),
		newSignCmd(g),
		newVerifyCmd(g),
		newKeyCmd(g),
	)
	return cmd
}

// parseKeyValues turns repeated k=v flags into a map. Later keys win.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, usageError("invalid --%s %q (want key=value)", flag, p)
		}
		out[k] = v
	}
	return out, nil
}

func promptPassphrase(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", usageError("--ask-passphrase needs a terminal; use --passphrase-env")
	}
	fmt.Fprint(prompt, "Passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(b) == 0 {
		return "", usageError("empty passphrase")
	}
	return string(b), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
