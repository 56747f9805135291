// cmd/gentoken signs a development operator token with JWT_SECRET.
// Usage: go run ./cmd/gentoken -user ayse -role cashier -branch 1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"moneycase/internal/config"
	"moneycase/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	user := flag.String("user", "admin", "operator username")
	role := flag.String("role", middleware.RoleAdmin, "admin | manager | cashier")
	branch := flag.Int64("branch", 0, "restrict the token to one branch (0 = none)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: *user,
		Rol:      *role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
		},
	}
	if *branch > 0 {
		claims.BranchID = branch
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
