package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Warning: .env file not found, using system environment variables")
	}
}

func main() {

	// Load .env variables
	LoadEnv()

	// Open the record store
	store, err := openStore()
	if err != nil {
		log.Fatalf("❌ Store init failed: %v", err)
	}

	// Invitation dispatcher
	mailer := NewMailer(MailerConfigFromEnv())
	if !mailer.configured() {
		log.Println("⚠️ SMTP not configured (SMTP_HOST, SMTP_PORT, MAIL_FROM) — invitations will not be sent")
	}

	app := &App{store: store, mailer: mailer}
	r := NewRouter(app)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("🚀 Server running on http://localhost:" + port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
}

// openStore picks the persistence backend: STORE_BACKEND=file (default)
// keeps JSON files under DATA_DIR, STORE_BACKEND=postgres uses the DB_*
// variables.
func openStore() (Store, error) {
	switch backend := os.Getenv("STORE_BACKEND"); backend {
	case "", "file":
		dir := os.Getenv("DATA_DIR")
		if dir == "" {
			dir = "data"
		}
		log.Println("📁 Using JSON file store in " + dir)
		return NewFileStore(dir)
	case "postgres":
		log.Println("🐘 Using Postgres store")
		return NewGormStore()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (use file or postgres)", backend)
	}
}
