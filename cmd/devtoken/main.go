// Command devtoken prints a signed bearer token for local use of the API.
//
//	go run ./cmd/devtoken -role BRANCH_MANAGER -user bm-01
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"loanflow/internal/config"
	"loanflow/internal/domain/role"
	"loanflow/internal/security"
)

func main() {
	roleName := flag.String("role", "LOAN_OFFICER", "approver role")
	userID := flag.String("user", "dev-user", "subject (user id)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	r, err := role.Parse(*roleName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	token, err := security.NewTokenManager(cfg.JWTSecret, *ttl).Generate(role.Actor{UserID: *userID, Role: r})
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
