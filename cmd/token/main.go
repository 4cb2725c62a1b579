// Command token mints a bearer token for a principal using the server's signing
// configuration. Intended for operators and local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "citadel/internal/jwt_token"
	"citadel/internal/platform/config"
	id "citadel/pkg/domain"
)

func main() {
	configPath := flag.String("config", os.Getenv("CITADEL_CONFIG"), "path to a TOML config file")
	subject := flag.String("principal", "", "principal to issue the token for")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*configPath, *subject, *ttl); err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, subject string, ttl time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	principal, err := id.ParsePrincipal(subject)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	token, err := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer).GenerateAccessToken(principal, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
