// Command devtoken mints an access token for local testing against the
// booking API.  Identity is issued by another service in production.
//
//	go run ./cmd/devtoken -user 42 -role CUSTOMER
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

func main() {
	_ = godotenv.Load()

	ttlMin, _ := strconv.Atoi(os.Getenv("ACCESS_TOKEN_TTL_MIN"))
	if ttlMin <= 0 {
		ttlMin = 60
	}
	user := flag.Uint64("user", 0, "user id placed in the sub claim")
	role := flag.String("role", middleware.RoleCustomer, "OWNER or CUSTOMER")
	ttl := flag.Duration("ttl", time.Duration(ttlMin)*time.Minute, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	if *user == 0 {
		log.Fatal("-user is required")
	}
	if *role != middleware.RoleOwner && *role != middleware.RoleCustomer {
		log.Fatalf("unknown role %q", *role)
	}
	tok, err := utils.NewAccessToken(secret, *user, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
