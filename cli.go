package adbm

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type CliConfig struct {
	// NewManager opens a manager from the config file given with --config,
	// which may be empty.
	NewManager func(configFile string) (*Manager, error)
	CliName    string
}

type Cli struct {
	newManager func(configFile string) (*Manager, error)
	cliName    string
	manager    *Manager
}

func NewCli(config CliConfig) (*Cli, error) {
	if config.NewManager == nil {
		return nil, ErrManagerNotProvided
	}
	if config.CliName == "" {
		config.CliName = "adbm"
	}

	return &Cli{
		newManager: config.NewManager,
		cliName:    config.CliName,
	}, nil
}

func (c *Cli) Execute(ctx context.Context) error {
	return c.Command(ctx).Execute()
}

// Command builds the root command. Subcommands open the manager lazily so
// that help output works without a database.
func (c *Cli) Command(ctx context.Context) *cobra.Command {
	var configFile string

	open := func(cmd *cobra.Command, args []string) error {
		if !needsManager(cmd) {
			return nil
		}
		manager, err := c.newManager(configFile)
		if err != nil {
			return fmt.Errorf("open manager: %w", err)
		}
		c.manager = manager
		return nil
	}

	closeManager := func(cmd *cobra.Command, args []string) error {
		if c.manager == nil {
			return nil
		}
		err := c.manager.Close()
		c.manager = nil
		return err
	}

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the database and the metadata table if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager.Init(ctx)
		},
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List completed migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.manager.List(ctx)
			if err != nil {
				return err
			}
			list.Print()
			return nil
		},
	}

	var markCmd = &cobra.Command{
		Use:   "mark <id>",
		Short: "Record a migration as completed without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager.Mark(ctx, args[0])
		},
	}

	var unmarkCmd = &cobra.Command{
		Use:   "unmark <id>",
		Short: "Forget that a migration was completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.manager.Unmark(ctx, args[0])
		},
	}

	var createCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.manager.Create(args[0])
			return err
		},
	}

	var rootCmd = &cobra.Command{
		Use:                c.cliName,
		Short:              "Bookkeeping for document database migrations",
		PersistentPreRunE:  open,
		PersistentPostRunE: closeManager,
		SilenceUsage:       true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file")

	rootCmd.AddCommand(
		initCmd,
		listCmd,
		markCmd,
		unmarkCmd,
		createCmd,
	)

	return rootCmd
}

// needsManager reports whether cmd talks to the database. cobra's own help
// and completion commands inherit the persistent hooks but must not.
func needsManager(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}
