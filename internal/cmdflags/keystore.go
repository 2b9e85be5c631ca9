package cmdflags

import (
	"github.com/jessety/simple-hmac-auth/keystore"
	"github.com/urfave/cli/v2"
)

func Keystore(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "keystore",
		Aliases:     []string{"k", "store"},
		Usage:       "Path to a SQLite key store",
		Destination: out,
		Value:       *out,
	}
}

func RootKeyEnvVar(out *string) cli.Flag {
	if len(*out) == 0 {
		*out = keystore.RootKeyEnvVar
	}
	return &cli.StringFlag{
		Name:        "root-key-envvar-name",
		Usage:       "Name of the environment variable that holds the root key. The key itself should not be passed as an argument",
		Value:       *out,
		Destination: out,
	}
}
