package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/friendsincode/volund_planner/internal/auth"
	"github.com/friendsincode/volund_planner/internal/db"
	"github.com/friendsincode/volund_planner/internal/models"
)

var (
	seedEmail    string
	seedPassword string
	seedRole     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create an initial user account",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "account email (required)")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "account password (required)")
	seedCmd.Flags().StringVar(&seedRole, "role", string(models.RoleAdmin), "account role: admin, planner or viewer")
	_ = seedCmd.MarkFlagRequired("email")
	_ = seedCmd.MarkFlagRequired("password")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	role := models.RoleName(seedRole)
	switch role {
	case models.RoleAdmin, models.RolePlanner, models.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", seedRole)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     seedEmail,
		Password:  hash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := database.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("created %s account %s\n", role, seedEmail)
	return nil
}
