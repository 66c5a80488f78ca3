// Command token issues bearer tokens for producers and operators using the
// signing settings in FLIGHTNOTIFY_JWT_*.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/flightnotify/pkg/auth"
	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/enums"
)

func main() {
	_ = godotenv.Load()

	subject := flag.String("sub", "", "token subject, e.g. svc-bookings or an operator email")
	role := flag.String("role", string(enums.RoleProducer), "role: producer|operator")
	minutes := flag.Int("ttl", 0, "lifetime in minutes (default FLIGHTNOTIFY_JWT_EXPIRATION_MINUTES)")
	flag.Parse()

	token, err := mint(*subject, *role, *minutes, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(subject, role string, minutes int, now time.Time) (string, error) {
	cfg, err := config.LoadJWT()
	if err != nil {
		return "", err
	}
	if minutes > 0 {
		cfg.ExpirationMinutes = minutes
	}
	parsed, err := enums.ParseRole(role)
	if err != nil {
		return "", err
	}
	return auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{Subject: subject, Role: parsed})
}
