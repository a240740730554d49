package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"kitbuild/internal/actor"
	"kitbuild/pkg/authtoken"
	"kitbuild/pkg/config"
)

// Mints a bearer token for local testing, e.g.
//
//	go run ./cmd/dev/token -sub staff-1 -role staff
func main() {
	var (
		subject = flag.String("sub", "", "actor id (token subject)")
		role    = flag.String("role", "client", "admin, staff or client")
		ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
		secret  = flag.String("secret", "", "signing secret (defaults to AUTH_TOKEN_SECRET)")
	)
	flag.Parse()

	cfg := config.Load()
	if *secret == "" {
		*secret = cfg.Auth.TokenSecret
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -secret (or AUTH_TOKEN_SECRET in env/.env)")
		os.Exit(2)
	}
	if *subject == "" {
		fmt.Fprintln(os.Stderr, "missing -sub")
		os.Exit(2)
	}
	r, err := actor.ParseRole(*role)
	if err != nil || r == actor.RoleAnonymous {
		fmt.Fprintf(os.Stderr, "invalid -role %q\n", *role)
		os.Exit(2)
	}

	tok, err := authtoken.Issue(*secret, cfg.Auth.Issuer, *subject, string(r), *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
