package main

import (
	"crypto"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// gensecret generates a SESSION_SECRET for signing session tokens (HS256)
// and prints its JWK thumbprint, which is safe to compare across instances.
//
// Usage:
//
//	go run ./cmd/gensecret [-bytes 48] [-save]
func main() {
	size := flag.Int("bytes", 48, "secret length in bytes (minimum 32)")
	save := flag.Bool("save", false, "also write the secret to session-secret.txt")
	flag.Parse()

	if *size < 32 {
		log.Fatalf("Secret must be at least 32 bytes, got %d", *size)
	}

	raw := make([]byte, *size)
	if _, err := rand.Read(raw); err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	// Tokens are signed with the configured string's bytes, so thumbprint those
	key, err := jwk.FromRaw([]byte(secret))
	if err != nil {
		log.Fatalf("Failed to create JWK from secret: %v", err)
	}
	thumbprint, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		log.Fatalf("Failed to compute thumbprint: %v", err)
	}

	fmt.Println("Add this to your environment:")
	fmt.Printf("\nSESSION_SECRET='%s'\n", secret)
	fmt.Printf("\nThumbprint (SHA-256): %s\n", base64.RawURLEncoding.EncodeToString(thumbprint))
	fmt.Println("\nKeep the secret out of version control. Rotating it signs every user out.")

	if *save {
		filename := "session-secret.txt"
		if err := os.WriteFile(filename, []byte(secret+"\n"), 0o600); err != nil {
			log.Fatalf("Failed to write secret file: %v", err)
		}
		fmt.Printf("\nSecret saved to %s\n", filename)
	}
}
