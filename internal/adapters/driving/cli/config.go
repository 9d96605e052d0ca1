package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/hybridsearch/internal/core/domain"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the configuration file path",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipServices: ""},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(settingsStore.Path())
	},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration as TOML",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipServices: ""},
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := toml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		cmd.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Writes the default settings to the configuration file. An existing file is
left alone unless --force is given.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipServices: ""},
	RunE:        runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := settingsStore.Path()

	_, err := os.Stat(path)
	switch {
	case err == nil && !configForce:
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", path, err)
	}

	defaults := domain.DefaultSettings()
	if err := settingsStore.Save(&defaults); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
