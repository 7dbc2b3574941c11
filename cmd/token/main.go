// Command token issues a signed access token for a user, for development and
// operational use against a server running with CHAT_AUTH_SECRET set.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/auth"
)

func main() {
	userID := flag.String("user", "", "user identity to issue the token for")
	secret := flag.String("secret", os.Getenv("CHAT_AUTH_SECRET"), "signing secret (defaults to CHAT_AUTH_SECRET)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-secret <secret>] [-ttl <duration>]")
		os.Exit(2)
	}

	token, err := auth.New(*secret, *ttl).GenerateToken(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
