package dump

import (
	"os"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rigbridge/rigbridge/modules/cli"
	"github.com/rigbridge/rigbridge/modules/ui"
)

var (
	inspectCmd = &cobra.Command{
		Use:   "inspect [dumpfile]",
		Short: "Print the entities of a dump file",
		Args:  cobra.ExactArgs(1),
		RunE:  executeInspect,
	}

	match *string
)

func init() {
	match = inspectCmd.Flags().String("match", "*", "Only show entities whose name matches this glob")
	cli.Root.AddCommand(inspectCmd)
}

func executeInspect(cmd *cobra.Command, args []string) error {
	matcher, err := glob.Compile(*match)
	if err != nil {
		return errors.Wrapf(err, "bad match pattern %q", *match)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "reading %v", args[0])
	}

	entries, err := Parse(data)
	if err != nil {
		return err
	}

	shown := 0
	for _, entry := range entries {
		if !matcher.Match(entry.Name) {
			continue
		}
		ui.Info().Msgf("%6d %-22s %v (%v components)",
			entry.Entity, entry.Archetype, entry.Name, len(entry.Components))
		shown++
	}

	ui.Info().Msgf("%v of %v entities shown", shown, len(entries))
	return nil
}
