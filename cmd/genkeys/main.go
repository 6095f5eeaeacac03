package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/alure/alure-api/internal/crypto"
)

func main() {
	keyPath := flag.String("out", "./configs/receipt_signing.pem", "Path to write the Ed25519 private key")
	flag.Parse()

	keys, generated, err := crypto.LoadOrGenerate(*keyPath)
	if err != nil {
		log.Fatalf("Failed to load or generate signing key: %v", err)
	}

	if generated {
		fmt.Printf("Generated new Ed25519 signing key at %s\n\n", *keyPath)
	} else {
		fmt.Printf("Using existing signing key at %s\n\n", *keyPath)
	}

	publicPEM, err := keys.PublicPEM()
	if err != nil {
		log.Fatalf("Failed to encode public key: %v", err)
	}

	fmt.Println("Public key (embed this in client SDK builds):")
	fmt.Println(publicPEM)
}
