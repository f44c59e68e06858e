package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"earthworm-cli/internal/app"
	"earthworm-cli/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	flagConfig   string
	flagBaseURL  string
	flagLanguage string
	flagDev      bool
	flagStore    string
)

func loadConfig(cmd *cobra.Command) (app.Config, error) {
	path := flagConfig
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if cmd.Flags().Changed("language") {
		cfg.Language = flagLanguage
	}
	if cmd.Flags().Changed("dev") {
		cfg.DevFallback = flagDev
	}
	if cmd.Flags().Changed("store") {
		cfg.Store = flagStore
	}
	return cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:     "worm",
		Short:   "Earthworm - terminal client for the Earthworm assistant",
		Long:    "Earthworm is a terminal chat client for the Earthworm agricultural assistant.\n\nRun without arguments to open the chat UI. Sessions are kept locally;\nthe newest 50 are retained.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			p := tea.NewProgram(tui.New(application), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "Chat backend base URL")
	root.PersistentFlags().StringVar(&flagLanguage, "language", "en", "Language: en|ta")
	root.PersistentFlags().BoolVar(&flagDev, "dev", false, "Answer locally when the backend is unreachable")
	root.PersistentFlags().StringVar(&flagStore, "store", "", "Session store backend: json|sqlite")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			sessions := application.Store.Load()
			if len(sessions) == 0 {
				fmt.Println("No saved sessions.")
				return nil
			}
			for _, sess := range sessions {
				fmt.Printf("%s  %-33s  %3d messages  %s\n",
					sess.ID, sess.Title, len(sess.Messages), sess.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	sessionsClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			if err := application.Store.Clear(); err != nil {
				return err
			}
			fmt.Println("All sessions deleted.")
			return nil
		},
	}
	sessionsCmd.AddCommand(sessionsClearCmd)
	root.AddCommand(sessionsCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := app.NewChatClient(cfg.BaseURL, false)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			up, bridge := client.Health(ctx)
			if !up {
				return fmt.Errorf("backend at %s is unreachable", cfg.BaseURL)
			}
			fmt.Printf("Backend: healthy\nAI bridge connected: %v\n", bridge)
			return nil
		},
	}
	root.AddCommand(healthCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
