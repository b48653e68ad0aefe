package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanglvm/ric/internal/config"
)

// redacted replaces secrets in 'config show'.
const redacted = "********"

// NewConfigCmd creates the 'config' command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write the built-in defaults to the configuration file so they can be
edited. The file goes to --config, $RIC_CONFIG or ~/.ric/config.yaml.

Neo4j credentials are best kept in the environment or a .env file:
NEO4J_URI, NEO4J_USER and NEO4J_PASSWORD override the file.`,
		Example: `  ric config init
  ric config init --config ./ric.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file (a .bak copy is kept)")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists\n\n💡 Use --force to overwrite it", path)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the file, .env and the
environment. The Neo4j password is redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := *a.cfg
	if cfg.Store.Neo4j.Password != "" {
		cfg.Store.Neo4j.Password = redacted
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// configPath resolves --config, then $RIC_CONFIG, then the default path.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		return path, nil
	}
	if path := os.Getenv(config.EnvConfigPath); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}
