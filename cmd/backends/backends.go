// Package backends contains the commands that inspect storage backends.
package backends

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/receiptvault/cmd/root"
	"fjacquet/receiptvault/internal/config"
)

var (
	// Cmd is the backends command
	Cmd = &cobra.Command{
		Use:   "backends",
		Short: "Inspect the available storage backends",
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List supported storage modes and the active one",
		Run:   runList,
	}

	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Verify authentication against the configured backend",
		RunE:  runAuth,
	}
)

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(authCmd)
}

func runList(cmd *cobra.Command, args []string) {
	active := ""
	if root.Cfg != nil {
		active = root.Cfg.Storage.Mode
	}
	for _, mode := range config.StorageModes {
		marker := " "
		if mode == active {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, mode)
	}
}

func runAuth(cmd *cobra.Command, args []string) error {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return err
	}
	backend := app.Backend()
	if backend == nil {
		return fmt.Errorf("no backend configured; remove --offline or set storage.mode")
	}

	if err := backend.Authenticate(cmd.Context()); err != nil {
		return fmt.Errorf("authentication against '%s' failed: %w", backend.Name(), err)
	}
	fmt.Printf("Authenticated against '%s'\n", backend.Name())
	return nil
}
