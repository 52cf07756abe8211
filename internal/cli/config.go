package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mgpai22/shadowplay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Long: `Write the sample configuration to path, or to the default location
(~/.config/shadowplay/config.toml). Existing files are kept unless --force
is given.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().
		Bool("force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	var err error
	if path == "" {
		path, err = config.DefaultConfigPath()
	} else {
		path, err = config.ExpandPath(path)
	}
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.CreateSample(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written: %s\n", path)
	return nil
}
