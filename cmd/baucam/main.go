package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"baucam/internal/app"
	"baucam/internal/config"
	"baucam/internal/encryption"
	"baucam/internal/model"
	"baucam/internal/timelapse"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, creating it from defaults on first run.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.LoadDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults.ConfigPath, defaults.Config())
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp(ctx context.Context, command string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "baucam",
	Short:        "Unattended time-lapse capture controller",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture loop",
	Long: `Run the capture loop until SIGTERM or SIGINT.

SIGUSR1 requests one immediate capture. After too many consecutive failures
the configured reboot command is run and baucam exits with status 2.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "run")
		if err != nil {
			return err
		}
		defer a.Close()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)
		go forwardSignals(sigs, a.Triggers())
		defer func() {
			signal.Stop(sigs)
			close(sigs)
		}()

		err = a.Run(cmd.Context())
		if errors.Is(err, timelapse.ErrRebootRequested) {
			a.Close()
			os.Exit(2)
		}
		return err
	},
}

// forwardSignals turns signals into trigger requests until sigs is closed.
func forwardSignals(sigs <-chan os.Signal, triggers *timelapse.Triggers) {
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			triggers.RequestCapture()
		default:
			triggers.RequestShutdown()
		}
	}
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Run one archival pass",
	Long:  "Run one archival pass. Do not run while the capture loop is running.",
	RunE: func(cmd *cobra.Command, args []string) error {
		budget, _ := cmd.Flags().GetDuration("budget")

		a, err := newApp(cmd.Context(), "archive")
		if err != nil {
			return err
		}
		defer a.Close()

		report := a.Archive(cmd.Context(), budget)
		fmt.Printf("Copied:  %d\n", report.Copied)
		fmt.Printf("Deleted: %d\n", report.Deleted)
		fmt.Printf("Healed:  %d\n", report.Healed)
		if report.Backup != "" {
			fmt.Printf("Backup:  %s\n", report.Backup)
		}
		if report.Err != nil {
			return report.Err
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show capture and archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Database:     %s\n", st.Database)
		fmt.Printf("Captures:     %d (%d failed)\n", st.Captures, st.FailedCaptures)
		if st.LastCapture != nil {
			fmt.Printf("Last capture: %s (%s)\n", st.LastCapture.LocalTime.Format("2006-01-02 15:04:05"), captureResult(st.LastCapture))
		}
		fmt.Printf("Files:        %d\n", st.Files.Total)
		fmt.Printf("  pending:    %d\n", st.Files.PendingCopy)
		fmt.Printf("  archived:   %d\n", st.Files.Archived)
		fmt.Printf("  remote:     %d\n", st.Files.RemoteOnly)
		fmt.Printf("  lost:       %d\n", st.Files.Lost)
		fmt.Printf("  to delete:  %d\n", st.Files.ToDelete)
		fmt.Printf("Free space:   %s (watermark %s)\n", formatBytes(st.FreeSpace), formatBytes(st.Watermark))
		switch {
		case st.RemoteErr != nil:
			fmt.Printf("Remote:       error: %v\n", st.RemoteErr)
		case st.RemoteAlive:
			fmt.Println("Remote:       reachable")
		default:
			fmt.Println("Remote:       marker missing")
		}

		recent, _ := cmd.Flags().GetInt("recent")
		if recent <= 0 {
			return nil
		}
		captures, err := a.Captures(recent)
		if err != nil {
			return err
		}
		fmt.Println()
		for _, c := range captures {
			camera := "-"
			if c.CameraTime != nil {
				camera = c.CameraTime.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("#%d  %s  camera %s  %s\n", c.ID, c.LocalTime.Format("2006-01-02 15:04:05"), camera, captureResult(c))
		}
		return nil
	},
}

func captureResult(c *model.CaptureRecord) string {
	if c.Failed() {
		return "failed"
	}
	return fmt.Sprintf("%d files", c.FileCount)
}

var climateCmd = &cobra.Command{
	Use:   "climate",
	Short: "List recent climate samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "climate")
		if err != nil {
			return err
		}
		defer a.Close()

		samples, err := a.Climate(limit)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			fmt.Println("No climate samples recorded.")
			return nil
		}
		for _, s := range samples {
			fmt.Printf("%s  %5.1f %%  %5.1f °C\n", s.Time.Format("2006-01-02 15:04:05"), *s.Humidity, *s.Temperature)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.LoadDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		if err := config.Init(defaults.ConfigPath, defaults.Config()); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration written to %s\n", defaults.ConfigPath)
		fmt.Printf("Data directory: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage metadata store backups",
}

var backupKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an age key pair for backup encryption",
	Long: `Generate an age identity and append its recipient to the recipients file.

Keep the identity off the device; only the recipients file is needed to
encrypt backups.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, _ := cmd.Flags().GetString("identity")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		recipients := cfg.Backup.RecipientsPath
		if recipients == "" {
			recipients = filepath.Join(filepath.Dir(cfg.Database.Path), "backup_recipients.txt")
		}

		recipient, err := encryption.GenerateKeyPair(identity, recipients)
		if err != nil {
			return err
		}

		fmt.Printf("Identity:   %s\n", identity)
		fmt.Printf("Recipients: %s\n", recipients)
		fmt.Printf("Public key: %s\n", recipient)
		if cfg.Backup.Encryption != "age" || cfg.Backup.RecipientsPath != recipients {
			fmt.Printf("\nSet backup.encryption = \"age\" and backup.recipients_path = %q to enable encryption.\n", recipients)
		}
		return nil
	},
}

var backupDecryptCmd = &cobra.Command{
	Use:   "decrypt BACKUP OUTPUT",
	Short: "Decrypt a downloaded backup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, _ := cmd.Flags().GetString("identity")

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening backup: %w", err)
		}
		defer in.Close()

		out, err := os.OpenFile(args[1], os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		if err := encryption.Decrypt(identity, in, out); err != nil {
			out.Close()
			os.Remove(args[1])
			return err
		}
		return out.Close()
	},
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().DurationP("budget", "b", 10*time.Minute, "Maximum time to spend archiving")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntP("recent", "n", 0, "Also list this many recent captures")

	rootCmd.AddCommand(climateCmd)
	climateCmd.Flags().IntP("limit", "n", 50, "Maximum number of samples to read")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	// backup subcommands
	backupCmd.AddCommand(backupKeygenCmd)
	backupKeygenCmd.Flags().StringP("identity", "i", "baucam-backup.key", "Path of the identity file to create")
	backupCmd.AddCommand(backupDecryptCmd)
	backupDecryptCmd.Flags().StringP("identity", "i", "baucam-backup.key", "Path of the identity file")
	rootCmd.AddCommand(backupCmd)
}
