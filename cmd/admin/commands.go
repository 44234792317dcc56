package main

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/db"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

// connectFunc открывает соединение с базой. В тестах подменяется.
type connectFunc func(cmd *cobra.Command, dsn string) (*sqlx.DB, error)

func connectPostgres(cmd *cobra.Command, dsn string) (*sqlx.DB, error) {
	return db.NewPostgres(cmd.Context(), dsn)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	return newRootCmdWith(cfg, connectPostgres)
}

func newRootCmdWith(cfg *config.Config, connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "gigmarket-admin",
		Short:         "Служебные команды маркетплейса",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newMigrateCmd(cfg, connect),
		newMigrationsStatusCmd(cfg, connect),
		newSeedAdminCmd(cfg, connect),
	)
	return root
}

func newMigrateCmd(cfg *config.Config, connect connectFunc) *cobra.Command {
	dir := cfg.MigrationsPath

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить новые миграции",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := connect(cmd, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := db.RunMigrations(cmd.Context(), conn, dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "новых миграций нет")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "применена %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", dir, "каталог с SQL миграциями")
	return cmd
}

func newMigrationsStatusCmd(cfg *config.Config, connect connectFunc) *cobra.Command {
	dir := cfg.MigrationsPath

	cmd := &cobra.Command{
		Use:   "migrations",
		Short: "Показать состояние миграций",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := connect(cmd, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			list, err := db.MigrationStatus(cmd.Context(), conn, dir)
			if err != nil {
				return err
			}
			for _, m := range list {
				state := "ожидает"
				if m.AppliedAt != nil {
					state = m.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", m.Name, state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", dir, "каталог с SQL миграциями")
	return cmd
}

func newSeedAdminCmd(cfg *config.Config, connect connectFunc) *cobra.Command {
	var (
		email    = cfg.AdminEmail
		password = cfg.AdminPassword
		username = "admin"
	)

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Создать администратора или сбросить его пароль",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if err := validation.ValidateEmail(email); err != nil {
				return err
			}
			if err := validation.ValidatePassword(password); err != nil {
				return fmt.Errorf("пароль администратора (--password или ADMIN_PASSWORD): %w", err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("не удалось захешировать пароль: %w", err)
			}

			conn, err := connect(cmd, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			admin := &models.User{Email: email, Username: strings.TrimSpace(username), PasswordHash: string(hash), Role: models.RoleAdmin}
			if err := repository.NewUserRepository(conn).UpsertAdmin(cmd.Context(), admin); err != nil {
				return err
			}

			logger.WithComponent("admin").WithField("user_id", admin.ID).Info("admin: администратор готов")
			fmt.Fprintf(cmd.OutOrStdout(), "администратор %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", email, "email администратора")
	cmd.Flags().StringVar(&password, "password", password, "пароль администратора")
	cmd.Flags().StringVar(&username, "username", username, "имя пользователя")
	return cmd
}
