package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initGorm(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		now := time.Now().UTC()

		if clearData {
			fmt.Println("Clearing existing data...")
			for _, table := range []string{"audit_logs", "therapy_sessions", "persons", "users"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
		}

		adminEmail := "test@example.com"
		password := "test123"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		var exists int
		row := db.Raw("SELECT 1 FROM users WHERE email = ?", adminEmail).Row()
		if err := row.Scan(&exists); err != nil {
			if err := db.Exec(
				"INSERT INTO users (email, name, password_hash, role, is_active, created_at, updated_at) VALUES (?, ?, ?, 'admin', true, ?, ?)",
				adminEmail, "Test Admin", string(hash), now, now,
			).Error; err != nil {
				log.Fatalf("failed to insert admin user: %v", err)
			}
			fmt.Printf("Seeded admin user: %s / %s\n", adminEmail, password)
		} else {
			fmt.Println("admin user already exists; skipping")
		}

		var adminID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&adminID); err != nil {
			log.Fatalf("failed to look up admin user id: %v", err)
		}

		samplePatients := []string{"Juan García", "María López", "Carlos Rodríguez"}
		for _, name := range samplePatients {
			var exists int
			row := db.Raw(
				"SELECT 1 FROM persons WHERE user_id = ? AND name = ? AND deleted_at IS NULL",
				adminID, name,
			).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}

			if err := db.Exec(
				"INSERT INTO persons (user_id, name, notes, is_active, created_by_id, created_at, updated_at) VALUES (?, ?, '', true, ?, ?, ?)",
				adminID, name, adminID, now, now,
			).Error; err != nil {
				log.Fatalf("failed to insert patient %s: %v", name, err)
			}
			fmt.Printf("Seeded patient: %s\n", name)
		}

		// Three sessions per patient on a weekly cadence, alternating
		// pending and paid, skipping patients that already have sessions.
		for _, name := range samplePatients {
			var personID int64
			if err := db.Raw(
				"SELECT id FROM persons WHERE user_id = ? AND name = ? AND deleted_at IS NULL",
				adminID, name,
			).Row().Scan(&personID); err != nil {
				log.Fatalf("failed to look up patient %s: %v", name, err)
			}

			var count int64
			if err := db.Raw("SELECT COUNT(*) FROM therapy_sessions WHERE person_id = ?", personID).Row().Scan(&count); err != nil {
				log.Fatalf("failed to count sessions for %s: %v", name, err)
			}
			if count > 0 {
				continue
			}

			for i := 0; i < 3; i++ {
				sessionDate := now.AddDate(0, 0, -i*7).Format("2006-01-02")
				price := 100.0 + float64(i)*10
				pending := i%2 == 0

				if err := db.Exec(
					"INSERT INTO therapy_sessions (person_id, user_id, session_date, session_price, pending, notes, created_by_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, '', ?, ?, ?)",
					personID, adminID, sessionDate, price, pending, adminID, now, now,
				).Error; err != nil {
					log.Fatalf("failed to insert session for %s: %v", name, err)
				}
			}
			fmt.Printf("Seeded 3 sessions for %s\n", name)
		}

		fmt.Println("Database seeded successfully")
	},
}
