package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgloader/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	Long: `Open the configuration file in $VISUAL or $EDITOR (vi when neither is
set) and validate it once the editor exits. Editors that need flags work
too, e.g. EDITOR="code --wait".

Examples:
  imgloader config edit
  imgloader config edit --config /etc/imgloader/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

// editorCommand splits the preferred editor into program and arguments.
func editorCommand(getenv func(string) string) []string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(getenv(key)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := displayPath(cmd)
	if !fileExists(path) {
		return fmt.Errorf("no configuration file at %s; run 'imgloader config init --config %s' first", path, path)
	}

	editor := editorCommand(os.Getenv)
	c := exec.CommandContext(cmd.Context(), editor[0], append(editor[1:], path)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("editor %s failed: %w", editor[0], err)
	}

	if _, err := config.MustLoad(path); err != nil {
		return fmt.Errorf("saved configuration is invalid: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
	return nil
}
