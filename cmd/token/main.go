// Command token issues an operator JWT signed with JWT_SECRET for local
// development, when no identity service is running.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"orderdesk-backend/config"
	"orderdesk-backend/internal/delivery/http/middleware"
	"orderdesk-backend/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "dev-operator", "subject recorded as the actor in order history")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", middleware.RoleOperator, "admin or operator")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *role != middleware.RoleAdmin && *role != middleware.RoleOperator {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	utils.SetSecret(cfg.JWTSecret)
	utils.SetIssuer(cfg.JWTIssuer)

	token, err := utils.IssueToken(*userID, *email, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
