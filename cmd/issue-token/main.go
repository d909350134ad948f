// Command issue-token mints a bearer token for local testing against the
// report API. It signs with JWT_SECRET from the environment or .env.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/patrickwarner/floodwatch/internal/config"
	"github.com/patrickwarner/floodwatch/internal/token"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, config.Load().JWTSecret); err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, secret string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	id := fs.String("id", "", "user id to embed (required)")
	name := fs.String("name", "", "user display name")
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	svc, err := token.NewService([]byte(secret), nil)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	tok, err := svc.Issue(token.Claims{ID: *id, Name: *name, Email: *email})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
