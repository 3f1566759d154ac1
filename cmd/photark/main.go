package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"photark/internal/app"
	"photark/internal/config"
	"photark/internal/engine"
	"photark/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "photark",
	Short: "Photo archive manager",
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage storage backends",
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		backends, err := a.Backends()
		if err != nil {
			return err
		}

		if len(backends) == 0 {
			fmt.Println("No backends configured.")
			return nil
		}

		for _, b := range backends {
			state := "disabled"
			if b.Enabled {
				state = "enabled"
			}
			fmt.Printf("%-20s  %-8s  %-8s  %s\n", b.ID, b.Type, state, b.DisplayName)
		}
		return nil
	},
}

var storageSetCmd = &cobra.Command{
	Use:   "set TYPE ID",
	Short: "Create or update a backend",
	Long: `Create or update a storage backend configuration.

TYPE is one of: local, s3, drive.
Settings are passed with repeated --setting key=value flags. Sensitive
settings (access keys, client secrets, tokens) are read from the terminal
with repeated --secret key flags so they never appear in shell history.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backendType, backendID := args[0], args[1]
		settings, _ := cmd.Flags().GetStringArray("setting")
		secrets, _ := cmd.Flags().GetStringArray("secret")
		displayName, _ := cmd.Flags().GetString("name")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Start from the existing config so settings can be updated one at
		// a time.
		cfg, err := a.Backend(backendID)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = &model.BackendConfig{
				ID:       backendID,
				Type:     backendType,
				Settings: map[string]string{},
			}
		}
		if cfg.Type != backendType {
			return fmt.Errorf("backend %s already exists with type %s", backendID, cfg.Type)
		}
		if displayName != "" {
			cfg.DisplayName = displayName
		}

		for _, s := range settings {
			key, value, ok := strings.Cut(s, "=")
			if !ok {
				return fmt.Errorf("invalid --setting %q, expected key=value", s)
			}
			cfg.Settings[key] = value
		}

		for _, key := range secrets {
			fmt.Printf("%s: ", key)
			value, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("reading secret %s: %w", key, err)
			}
			cfg.Settings[key] = string(value)
		}

		if err := a.SaveBackend(cfg); err != nil {
			return fmt.Errorf("saving backend: %w", err)
		}

		fmt.Printf("Backend %s (%s) saved.\n", backendID, backendType)
		return nil
	},
}

var storageEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

var storageDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], false)
	},
}

func setEnabled(backendID string, enabled bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SetBackendEnabled(backendID, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Backend %s %s.\n", backendID, state)
	return nil
}

var storageValidateCmd = &cobra.Command{
	Use:   "validate [ID]",
	Short: "Check backend connectivity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		if len(args) == 1 {
			ok, err := a.ValidateBackend(ctx, args[0])
			if err != nil {
				return err
			}
			printValidation(args[0], ok)
			return nil
		}

		results, err := a.ValidateBackends(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(results))
		for id := range results {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			printValidation(id, results[id])
		}
		return nil
	},
}

func printValidation(id string, ok bool) {
	status := "FAILED"
	if ok {
		status = "ok"
	}
	fmt.Printf("%-20s  %s\n", id, status)
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export DESTINATION",
	Short: "Export the archive to a package directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, _ := cmd.Flags().GetBool("bundle")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		jobID, err := a.StartExport(args[0], bundle)
		if err != nil {
			return err
		}
		return waitAndReport(a, jobID)
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import SOURCE",
	Short: "Import photos from a package or raw folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		jobID, err := a.StartImport(args[0], engine.ImportMode(mode))
		if err != nil {
			return err
		}
		return waitAndReport(a, jobID)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate TARGET",
	Short: "Move photo storage to another backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		albums, _ := cmd.Flags().GetStringArray("album")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		jobID, err := a.StartStorageMigration(engine.MigrationRequest{
			TargetBackend: args[0],
			SourceBackend: source,
			AlbumIDs:      albums,
		})
		if err != nil {
			return err
		}
		return waitAndReport(a, jobID)
	},
}

// waitAndReport polls a job to completion, printing progress as it moves.
func waitAndReport(a *app.App, jobID string) error {
	fmt.Printf("Job %s started.\n", jobID)

	lastProgress := -1
	for {
		j := a.Job(jobID)
		if j == nil {
			return fmt.Errorf("unknown job: %s", jobID)
		}
		if j.Progress != lastProgress && j.Total > 0 {
			fmt.Printf("  %d/%d  %s\n", j.Progress, j.Total, j.CurrentItem)
			lastProgress = j.Progress
		}
		if j.Done() {
			fmt.Printf("Job %s %s.\n", jobID, j.Status)
			if j.Error != "" {
				return fmt.Errorf("%s", j.Error)
			}
			keys := make([]string, 0, len(j.Result))
			for k := range j.Result {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s: %v\n", k, j.Result[k])
			}
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs from this run",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		jobs := a.Jobs()
		if len(jobs) == 0 {
			fmt.Println("No jobs.")
			return nil
		}
		for _, j := range jobs {
			fmt.Printf("%s  %-18s  %-10s  %d/%d\n",
				j.ID, j.Kind, j.Status, j.Progress, j.Total)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Request cancellation of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CancelJob(args[0]); err != nil {
			return err
		}
		fmt.Printf("Cancellation requested for job %s.\n", args[0])
		return nil
	},
}

// cat command
var catCmd = &cobra.Command{
	Use:   "cat BACKEND PATH",
	Short: "Write photo bytes from a backend to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		data, _, err := a.ServeFile(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// storage subcommands
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageSetCmd)
	storageSetCmd.Flags().StringArray("setting", nil, "Backend setting as key=value (repeatable)")
	storageSetCmd.Flags().StringArray("secret", nil, "Backend setting key to prompt for (repeatable)")
	storageSetCmd.Flags().String("name", "", "Display name")
	storageCmd.AddCommand(storageEnableCmd)
	storageCmd.AddCommand(storageDisableCmd)
	storageCmd.AddCommand(storageValidateCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().Bool("bundle", false, "Bundle the package into a tar.gz after export")
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("mode", string(engine.ImportPackage), "Import mode: package or raw")
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("source", "", "Only migrate photos currently on this backend")
	migrateCmd.Flags().StringArray("album", nil, "Album id to migrate, including descendants (repeatable)")
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(catCmd)
}
