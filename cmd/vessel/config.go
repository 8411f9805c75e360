package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/vessel/pkg/configstore"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the cluster's authored deployment",
}

var configApplyCmd = &cobra.Command{
	Use:   "apply -f FILE",
	Short: "Apply a new Deployment document to the control service's store",
	Long: `Replace the cluster's authored Deployment as a whole with the document
at FILE. It opens the store in --data-dir directly and writes the document
there. Opening the store takes the database file's lock, so this command
waits while a control service holds the same data directory open; a control
service started afterwards broadcasts the applied document. No running
process is notified of the write.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		store, err := configstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open config store: %w", err)
		}
		defer store.Close()

		if err := store.Apply(file); err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}

		fmt.Printf("applied %s\n", file)
		return nil
	},
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the currently applied Deployment as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := configstore.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open config store: %w", err)
		}
		defer store.Close()

		out, err := store.Dump()
		if err != nil {
			return fmt.Errorf("dump config: %w", err)
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	configCmd.AddCommand(configApplyCmd)
	configCmd.AddCommand(configDumpCmd)

	for _, cmd := range []*cobra.Command{configApplyCmd, configDumpCmd} {
		cmd.Flags().String("data-dir", "./vessel-control-data", "Control service's data directory")
	}
	configApplyCmd.Flags().StringP("file", "f", "", "Deployment YAML file to apply (required)")
	configApplyCmd.MarkFlagRequired("file")
}
