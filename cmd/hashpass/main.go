// Command hashpass prints the bcrypt hash for a password, suitable for
// the APP_PASSWORD_HASH environment variable.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/JBpeople/stay-ledger/internal/auth"
)

func main() {
	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
