package main

import (
	"flag"
	"fmt"
	"os"

	"autolog.dev/autolog/security"
)

// Prints the signed approval link for a timesheet path.
//
//	SIGNED_TOKEN_SECRET=... SITE_URL=https://autolog.dev go run ./cmd/createtoken abc123
func main() {
	siteURL := flag.String("site", os.Getenv("SITE_URL"), "public site base URL")
	tokenOnly := flag.Bool("token", false, "print only the token")
	flag.Parse()

	secret := os.Getenv("SIGNED_TOKEN_SECRET")
	if secret == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: SIGNED_TOKEN_SECRET=<secret> createtoken [-site URL] [-token] <path>")
		os.Exit(2)
	}
	path := flag.Arg(0)
	tokens := security.NewTokenService(secret)

	if *tokenOnly || *siteURL == "" {
		token, err := tokens.Sign(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	link, err := tokens.SignedURL(*siteURL, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(link)
}
