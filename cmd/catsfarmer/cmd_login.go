package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qtosh1/cats-farmer/internal/telegram"
	"github.com/qtosh1/cats-farmer/internal/useragent"
)

var loginPhone string

var loginCmd = &cobra.Command{
	Use:   "login <name>",
	Short: "Create a session file interactively",
	Long: `Logs a Telegram account in and stores it as SESSIONS_DIR/<name>.session.

The phone number, login code and 2FA password are read from the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "phone number in international format")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := args[0]
	prompter := telegram.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	prompter.PhoneNumber = loginPhone

	profile, err := telegram.Login(ctx, telegram.Options{
		Name:    name,
		Dir:     cfg.SessionsDir,
		APIID:   cfg.APIID,
		APIHash: cfg.APIHash,
		Logger:  logger.Named("login"),
	}, prompter)
	if err != nil {
		return fmt.Errorf("login %s: %w", name, err)
	}

	agents, err := useragent.Load(cfg.UserAgentsFile, useragent.NewGenerator(0), logger.Named("useragent"))
	if err != nil {
		return err
	}
	if _, err := agents.Ensure(name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s created for %s (id %d)\n", name, displayName(profile), profile.ID)
	return nil
}

func displayName(p telegram.Profile) string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	return p.FirstName
}
