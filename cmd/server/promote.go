package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/anonto42/inkwell/backend/internal/mailer"
	"github.com/anonto42/inkwell/backend/internal/models"
	"github.com/anonto42/inkwell/backend/internal/repositories"
	"github.com/anonto42/inkwell/backend/internal/services"
	"github.com/anonto42/inkwell/backend/pkg/config"
)

const (
	emailFlag = "email"
	roleFlag  = "role"
)

var promoteFlags = map[string]cobraflags.Flag{
	emailFlag: &cobraflags.StringFlag{
		Name:  emailFlag,
		Value: "",
		Usage: "Email address of the account to change (required)",
	},
	roleFlag: &cobraflags.StringFlag{
		Name:  roleFlag,
		Value: string(models.RoleAdmin),
		Usage: "Role to assign: reader, author or admin",
	},
}

func newPromoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change the role of an existing account",
		Long: `Change the role of an existing account. This is how the first admin is created,
since admin can never be chosen at registration.

Examples:
  inkwell promote --email jane@example.com
  inkwell promote --email joe@example.com --role author`,
		RunE: runPromote,
	}
	cobraflags.RegisterMap(cmd, promoteFlags)
	return cmd
}

func runPromote(cmd *cobra.Command, _ []string) error {
	email := promoteFlags[emailFlag].GetString()
	if email == "" {
		return errors.New("--email is required")
	}
	role := models.Role(promoteFlags[roleFlag].GetString())
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	ctx := cmd.Context()
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	users := services.NewUserService(
		repositories.NewMongoUserRepository(db.MongoDB),
		services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn),
		nil,
		mailer.LogSender{},
		cfg.FrontendURL,
	)
	user, err := users.PromoteByEmail(ctx, email, role)
	if err != nil {
		return err
	}

	slog.Info("role updated", "user", user.ID.Hex(), "email", user.Email, "role", user.Role)
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
	return nil
}
