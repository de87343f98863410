package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/didauth/autherr"
	"xdao.co/didauth/credential"
	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
	"xdao.co/didauth/model"
	"xdao.co/didauth/verify"
)

func newIssueCmd(g *globalFlags) *cobra.Command {
	var (
		name          string
		meta          []string
		scheme        string
		keyOut        string
		save          string
		passphraseEnv string
		force         bool
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a new identity and a signed enrollment message",
		Long: `issue generates a fresh keypair and prints {name, did, password, message, sign}.
The password is the private key: keep it secret. --key-out and --save also
write the key as a PEM key file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return usageError("missing --name")
			}
			metadata, err := parseKeyValues("meta", meta)
			if err != nil {
				return err
			}
			s, err := didkey.SchemeByName(scheme)
			if err != nil {
				return usageError("invalid --scheme: %v", err)
			}
			if save != "" {
				if err := keys.CheckKeyName(save); err != nil {
					return usageError("invalid --save: %v", err)
				}
			}
			passphrase, err := g.passphrase(passphraseEnv)
			if err != nil {
				return err
			}

			enr, err := credential.Issuer{Scheme: s}.Issue(name, metadata)
			if err != nil {
				return err
			}
			if keyOut != "" || save != "" {
				kp, err := credential.DeriveKeys(enr.DID, enr.Password)
				if err != nil {
					return err
				}
				if err := writeKeyOutputs(g, kp, keyOut, save, passphrase, force); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), enr)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&name, "name", "", "user name to enroll")
	fl.StringArrayVar(&meta, "meta", nil, "enrollment metadata key=value (repeatable)")
	fl.StringVar(&scheme, "scheme", didkey.Ed25519.Name, "key scheme (ed25519 or dilithium3)")
	fl.StringVar(&keyOut, "key-out", "", "also write the key to this PEM file")
	fl.StringVar(&save, "save", "", "also store the key in the key store under this name")
	fl.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding a passphrase to encrypt written key files")
	fl.BoolVar(&force, "force", false, "overwrite existing key files")
	return cmd
}

func writeKeyOutputs(g *globalFlags, kp *keys.Keypair, keyOut, save, passphrase string, force bool) error {
	if keyOut != "" {
		data, err := keys.EncodeKeyFile(kp, passphrase)
		if err != nil {
			return err
		}
		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if force {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(keyOut, flags, 0o600)
		if err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write key file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write key file: %w", err)
		}
	}
	if save != "" {
		ks, err := g.keyStore()
		if err != nil {
			return err
		}
		if _, err := ks.Save(save, kp, passphrase, force); err != nil {
			return fmt.Errorf("save key: %w", err)
		}
	}
	return nil
}

func newSignCmd(g *globalFlags) *cobra.Command {
	var (
		did           string
		password      string
		passwordEnv   string
		path          string
		method        string
		params        []string
		message       string
		key           string
		passphraseEnv string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a request description or a raw message",
		Long: `sign prints {message, sign}. Without --message the message is the canonical
JSON description of the call given by --path, --method and --param.

The signing key comes from --did with --password (or --password-env), or from
a stored key named by --key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordEnv != "" {
				password = g.getenv(passwordEnv)
			}
			kp, err := signingKey(g, did, password, key, passphraseEnv)
			if err != nil {
				return err
			}

			if message == "" {
				if path == "" || method == "" {
					return usageError("missing --path/--method (or --message)")
				}
				kv, err := parseKeyValues("param", params)
				if err != nil {
					return err
				}
				p := make(map[string]any, len(kv))
				for k, v := range kv {
					p[k] = v
				}
				message, err = credential.RequestMessage(path, method, p)
				if err != nil {
					return err
				}
			}
			sig, err := credential.Sign(kp, message)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), model.SignedMessage{Message: message, Sign: sig})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&did, "did", "", "DID of the signing identity")
	fl.StringVar(&password, "password", "", "password (private key) of the signing identity")
	fl.StringVar(&passwordEnv, "password-env", "", "environment variable holding the password")
	fl.StringVar(&key, "key", "", "name of a stored key to sign with instead of --did/--password")
	fl.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the stored key's passphrase")
	fl.StringVar(&path, "path", "", "request path")
	fl.StringVar(&method, "method", "", "request method")
	fl.StringArrayVar(&params, "param", nil, "request parameter key=value (repeatable)")
	fl.StringVar(&message, "message", "", "sign this exact message instead of a request description")
	return cmd
}

func signingKey(g *globalFlags, did, password, key, passphraseEnv string) (*keys.Keypair, error) {
	if key != "" {
		if did != "" || password != "" {
			return nil, usageError("--key cannot be combined with --did/--password")
		}
		passphrase, err := g.passphrase(passphraseEnv)
		if err != nil {
			return nil, err
		}
		ks, err := g.keyStore()
		if err != nil {
			return nil, err
		}
		return ks.Load(key, passphrase)
	}
	if did == "" || password == "" {
		return nil, usageError("missing --did and --password (or --key)")
	}
	return credential.DeriveKeys(did, password)
}

func newVerifyCmd(_ *globalFlags) *cobra.Command {
	var (
		did     string
		token   string
		message string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature token against a DID and message",
		Long: `verify exits 0 when the signature is valid, 1 when it is well formed but
invalid (including a signature by a different key), and 2 when the DID or
token is malformed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return usageError("missing --sign")
			}
			err := verify.Check(did, token, message)
			code := verifyExitCode(err)
			if asJSON {
				res := model.VerifyResult{Valid: err == nil, Error: model.FromError(err)}
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				if code == 0 {
					return nil
				}
				return &exitError{code: code}
			}
			if code == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "invalid")
			return &exitError{code: code, err: err}
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&did, "did", "", "claimed DID (empty checks the token alone)")
	fl.StringVar(&token, "sign", "", "signature token")
	fl.StringVar(&message, "message", "", "signed message")
	fl.BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func verifyExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case autherr.IsKind(err, autherr.KindMalformedIdentifier),
		autherr.IsKind(err, autherr.KindInvalidSignatureToken):
		return 2
	default:
		return 1
	}
}
