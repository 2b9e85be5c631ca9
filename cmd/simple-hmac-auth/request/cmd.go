package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/jessety/simple-hmac-auth/client"
	"github.com/jessety/simple-hmac-auth/sign"
	"github.com/urfave/cli/v2"
)

// Cmd sends a single signed request from the command line, mostly useful
// to exercise a server without writing a client.
func Cmd() *cli.Command {
	host := "localhost"
	port := 8000
	secure := false
	apiKey := ""
	secret := ""
	algorithm := string(sign.SHA256)
	method := "GET"
	path := "/v1/ping"
	body := ""
	timeout := 7500 * time.Millisecond
	var query cli.StringSlice
	return &cli.Command{
		Name:  "request",
		Usage: "Send one signed request and print the response body",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: host, Destination: &host},
			&cli.IntFlag{Name: "port", Value: port, Destination: &port},
			&cli.BoolFlag{Name: "secure", Usage: "Use https", Value: secure, Destination: &secure},
			&cli.StringFlag{Name: "api-key", Usage: "API key identifying this caller", Destination: &apiKey, Required: true},
			&cli.StringFlag{Name: "secret", Usage: "Shared secret; omit to send the request unsigned", Destination: &secret},
			&cli.StringFlag{Name: "algorithm", Usage: "HMAC digest: sha1, sha256 or sha512", Value: algorithm, Destination: &algorithm},
			&cli.StringFlag{Name: "method", Value: method, Destination: &method},
			&cli.StringFlag{Name: "path", Value: path, Destination: &path},
			&cli.StringSliceFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query parameter as name=value (repeatable)", Destination: &query},
			&cli.StringFlag{Name: "body", Usage: "Request body, sent verbatim", Destination: &body},
			&cli.DurationFlag{Name: "timeout", Value: timeout, Destination: &timeout},
		},
		Action: func(ctx *cli.Context) error {
			c, err := client.New(client.Config{
				Host:      host,
				Port:      port,
				Secure:    secure,
				APIKey:    apiKey,
				Secret:    secret,
				Algorithm: sign.Algorithm(algorithm),
				Timeout:   timeout,
			})
			if err != nil {
				return err
			}
			call := client.Call{Method: strings.ToUpper(method), Path: path}
			if len(query.Value()) > 0 {
				call.Query = make(map[string]interface{}, len(query.Value()))
				for _, pair := range query.Value() {
					name, value, ok := strings.Cut(pair, "=")
					if !ok {
						return fmt.Errorf("invalid --query %q, expected name=value", pair)
					}
					call.Query[name] = value
				}
			}
			if body != "" {
				call.Body = body
			}
			response, err := c.Request(ctx.Context, call)
			if err != nil {
				return err
			}
			fmt.Println(string(response))
			return nil
		},
	}
}
