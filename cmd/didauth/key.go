package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/didauth/didkey"
	"xdao.co/didauth/keys"
)

// keyCredential is what `key import` prints.
type keyCredential struct {
	Scheme   string `json:"scheme"`
	DID      string `json:"did"`
	Password string `json:"password"`
}

func newKeyCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage local key files",
		Long: `key converts credentials to and from PEM key files and manages the local key
store. Passphrases are read from the environment variable named by
--passphrase-env, never from the command line.`,
	}
	cmd.AddCommand(newKeyExportCmd(g), newKeyImportCmd(g), newKeyListCmd(g))
	return cmd
}

func newKeyExportCmd(g *globalFlags) *cobra.Command {
	var (
		did           string
		password      string
		passwordEnv   string
		key           string
		out           string
		passphraseEnv string
		force         bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a credential (or a stored key) as a PEM key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordEnv != "" {
				password = g.getenv(passwordEnv)
			}
			passphrase, err := g.passphrase(passphraseEnv)
			if err != nil {
				return err
			}
			// A stored key is re-encrypted with the same passphrase it was loaded with.
			kp, err := signingKey(g, did, password, key, passphraseEnv)
			if err != nil {
				return err
			}
			if out == "" {
				data, err := keys.EncodeKeyFile(kp, passphrase)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := writeKeyOutputs(g, kp, out, "", passphrase, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&did, "did", "", "DID of the identity")
	fl.StringVar(&password, "password", "", "password (private key) of the identity")
	fl.StringVar(&passwordEnv, "password-env", "", "environment variable holding the password")
	fl.StringVar(&key, "key", "", "export this stored key instead of --did/--password")
	fl.StringVar(&out, "out", "", "output file (default stdout)")
	fl.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the encryption passphrase")
	fl.BoolVar(&force, "force", false, "overwrite an existing output file")
	return cmd
}

func newKeyImportCmd(g *globalFlags) *cobra.Command {
	var (
		in            string
		save          string
		passphraseEnv string
		force         bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Read a PEM key file and print its credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return usageError("missing --in")
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
			kp, err := keys.LoadKeyFile(in, passphrase)
			if err != nil {
				return err
			}
			if save != "" {
				if err := writeKeyOutputs(g, kp, "", save, passphrase, force); err != nil {
					return err
				}
			}
			did, err := didkey.EncodePublicKey(kp.Scheme, kp.Public)
			if err != nil {
				return err
			}
			password, err := didkey.EncodePrivateKey(kp.Scheme, kp.Seed)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), keyCredential{Scheme: kp.Scheme.Name, DID: did, Password: password})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&in, "in", "", "PEM key file to read")
	fl.StringVar(&save, "save", "", "also store the key in the key store under this name")
	fl.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the file's passphrase")
	fl.BoolVar(&force, "force", false, "overwrite an existing stored key")
	return cmd
}

func newKeyListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := g.keyStore()
			if err != nil {
				return err
			}
			entries, err := ks.List()
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Name, e.Path)
			}
			return nil
		},
	}
}
