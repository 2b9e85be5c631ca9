package serve

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jessety/simple-hmac-auth/internal/cmdflags"
	"github.com/jessety/simple-hmac-auth/internal/httpserver"
	"github.com/jessety/simple-hmac-auth/keystore"
	"github.com/jessety/simple-hmac-auth/server"
	"github.com/julienschmidt/httprouter"
	"github.com/urfave/cli/v2"
)

// Cmd starts a demo API protected by the authentication middleware. Keys
// come from a SQLite store, inline key=secret pairs, or both; an optional
// cache sits in front of the store.
func Cmd() *cli.Command {
	bindAddr := "localhost:8000"
	var storePath string
	var inlineKeys cli.StringSlice
	cacheTTL := time.Duration(0)
	skew := time.Minute
	secretTimeout := 10 * time.Second
	return &cli.Command{
		Name:  "serve",
		Usage: "Start a demo API that only answers correctly signed requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to bind",
				Value:       bindAddr,
				Destination: &bindAddr,
			},
			cmdflags.Keystore(&storePath),
			&cli.StringSliceFlag{
				Name:        "key",
				Usage:       "Inline api-key=secret pair (repeatable)",
				Destination: &inlineKeys,
			},
			&cli.DurationFlag{
				Name:        "cache-ttl",
				Usage:       "Cache resolved secrets for this long (0 disables the cache)",
				Value:       cacheTTL,
				Destination: &cacheTTL,
			},
			&cli.DurationFlag{
				Name:        "skew",
				Usage:       "How old a request's date header may be before it is rejected",
				Value:       skew,
				Destination: &skew,
			},
			&cli.DurationFlag{
				Name:        "secret-timeout",
				Usage:       "Upper bound on a single secret lookup",
				Value:       secretTimeout,
				Destination: &secretTimeout,
			},
		},
		Action: func(ctx *cli.Context) error {
			resolver, cleanup, err := buildResolver(ctx, storePath, inlineKeys.Value(), cacheTTL)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := server.New(resolver, server.Config{
				Skew:          skew,
				SecretTimeout: secretTimeout,
			})

			router := httprouter.New()
			router.Handler("GET", "/v1/ping", svc.Middleware(http.HandlerFunc(ping)))
			router.Handler("POST", "/v1/echo", svc.Middleware(http.HandlerFunc(echo)))
			return httpserver.Serve(ctx.Context, bindAddr, router)
		},
	}
}

func buildResolver(ctx *cli.Context, storePath string, inline []string, cacheTTL time.Duration) (keystore.Resolver, func(), error) {
	cleanup := func() {}
	var resolver keystore.Resolver
	switch {
	case storePath != "":
		store, err := keystore.OpenSQLite(ctx.Context, storePath, false)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { store.Close() }
		resolver = store
	case len(inline) > 0:
		static := make(keystore.Static, len(inline))
		for _, pair := range inline {
			key, secret, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, nil, fmt.Errorf("invalid --key %q, expected api-key=secret", pair)
			}
			static[key] = secret
		}
		resolver = static
	default:
		return nil, nil, fmt.Errorf("either --keystore or at least one --key is required")
	}
	if cacheTTL > 0 {
		cached, err := keystore.NewCached(resolver, cacheTTL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		inner := cleanup
		cleanup = func() { cached.Close(); inner() }
		resolver = cached
	}
	return resolver, cleanup, nil
}

func ping(w http.ResponseWriter, r *http.Request) {
	result, _ := server.ResultFrom(r.Context())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{
		"pong":   time.Now().UTC().Format(http.TimeFormat),
		"apiKey": result.APIKey,
	})
}

// echo writes the verified body back. The middleware already drained and
// bounded it, so plain io.Copy is safe here.
func echo(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	io.Copy(w, r.Body)
}
