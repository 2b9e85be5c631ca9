package keys

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jessety/simple-hmac-auth/internal/cmdflags"
	"github.com/jessety/simple-hmac-auth/keystore"
	"github.com/urfave/cli/v2"
)

// Cmd manages API keys: a SQLite store for add/remove/list, plus a derive
// subcommand for the storage-free root-key scheme.
func Cmd() *cli.Command {
	var storePath string
	return &cli.Command{
		Name:  "keys",
		Usage: "Manage API keys and their secrets",
		Subcommands: []*cli.Command{
			addCmd(&storePath),
			removeCmd(&storePath),
			listCmd(&storePath),
			deriveCmd(),
		},
	}
}

func addCmd(storePath *string) *cli.Command {
	secret := ""
	return &cli.Command{
		Name:      "add",
		Usage:     "Add an API key; generates a random secret unless one is given",
		ArgsUsage: "<api-key>",
		Flags: []cli.Flag{
			cmdflags.Keystore(storePath),
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "Secret to store; omit to generate a random one",
				Destination: &secret,
			},
		},
		Action: func(ctx *cli.Context) error {
			apiKey := ctx.Args().First()
			if apiKey == "" {
				return fmt.Errorf("missing <api-key> argument")
			}
			if secret == "" {
				var err error
				secret, err = randomSecret()
				if err != nil {
					return err
				}
			}
			store, err := keystore.OpenSQLite(ctx.Context, *storePath, true)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Put(ctx.Context, apiKey, secret); err != nil {
				return err
			}
			fmt.Printf("%v=%v\n", apiKey, secret)
			return nil
		},
	}
}

func removeCmd(storePath *string) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove an API key",
		ArgsUsage: "<api-key>",
		Flags:     []cli.Flag{cmdflags.Keystore(storePath)},
		Action: func(ctx *cli.Context) error {
			apiKey := ctx.Args().First()
			if apiKey == "" {
				return fmt.Errorf("missing <api-key> argument")
			}
			store, err := keystore.OpenSQLite(ctx.Context, *storePath, true)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Remove(ctx.Context, apiKey)
		},
	}
}

func listCmd(storePath *string) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List API keys (secrets are not printed)",
		Flags: []cli.Flag{cmdflags.Keystore(storePath)},
		Action: func(ctx *cli.Context) error {
			store, err := keystore.OpenSQLite(ctx.Context, *storePath, false)
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.List(ctx.Context)
			if err != nil {
				return err
			}
			for _, r := range records {
				state := "enabled"
				if r.Disabled {
					state = "disabled"
				}
				fmt.Printf("%v\t%v\n", r.APIKey, state)
			}
			return nil
		},
	}
}

func deriveCmd() *cli.Command {
	envVar := ""
	return &cli.Command{
		Name:      "derive",
		Usage:     "Print the derived secret for an API key under the root-key scheme",
		ArgsUsage: "<api-key>",
		Flags:     []cli.Flag{cmdflags.RootKeyEnvVar(&envVar)},
		Action: func(ctx *cli.Context) error {
			apiKey := ctx.Args().First()
			if apiKey == "" {
				return fmt.Errorf("missing <api-key> argument")
			}
			key, err := keystore.KeyFromEnv(envVar, nil, nil)
			if err != nil {
				return err
			}
			defer key.Zero()
			fmt.Println(keystore.NewDerived(key).DeriveSecret(apiKey))
			return nil
		},
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate secret, cause %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}
