package persistence

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rigbridge/rigbridge/modules/cli"
	"github.com/rigbridge/rigbridge/modules/dump"
	"github.com/rigbridge/rigbridge/modules/settings"
	"github.com/rigbridge/rigbridge/modules/ui"
)

// Snapshot is one named dump kept in the persistence database.
type Snapshot struct {
	Name    string
	Created time.Time
	Data    []byte
}

func (s Snapshot) ID() string {
	return s.Name
}

func snapshots() (Store[Snapshot], error) {
	return GetStorage[Snapshot]("snapshots", false)
}

// SaveSnapshot stores dump data under a name, validating it first unless
// the validateOnExport preference is off.
func SaveSnapshot(name string, data []byte) error {
	if validate, ok := settings.Get("validateOnExport").(bool); !ok || validate {
		if _, err := dump.Parse(data); err != nil {
			return errors.Wrap(err, "not a valid dump")
		}
	}
	store, err := snapshots()
	if err != nil {
		return err
	}
	return store.Put(Snapshot{
		Name:    name,
		Created: time.Now(),
		Data:    data,
	})
}

// LoadSnapshot retrieves a stored dump by name.
func LoadSnapshot(name string) (Snapshot, error) {
	store, err := snapshots()
	if err != nil {
		return Snapshot{}, err
	}
	snap, found := store.Get(name)
	if !found {
		return Snapshot{}, errors.Errorf("no snapshot named %q", name)
	}
	return *snap, nil
}

var (
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Manage stored scene snapshots",
	}
	saveCmd = &cobra.Command{
		Use:   "save [name] [dumpfile]",
		Short: "Store a dump file as a named snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return errors.Wrapf(err, "reading %v", args[1])
			}
			if err := SaveSnapshot(args[0], data); err != nil {
				return err
			}
			ui.Info().Msgf("Stored snapshot %v (%v bytes)", args[0], len(data))
			return nil
		},
	}
	loadCmd = &cobra.Command{
		Use:   "load [name]",
		Short: "Write a stored snapshot back out as a dump file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(*loadOutput, snap.Data, 0644); err != nil {
				return errors.Wrapf(err, "writing %v", *loadOutput)
			}
			ui.Info().Msgf("Wrote snapshot %v from %v to %v",
				snap.Name, snap.Created.Format(time.DateTime), *loadOutput)
			return nil
		},
	}
	loadOutput *string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshots()
			if err != nil {
				return err
			}
			all, err := store.List()
			if err != nil {
				return err
			}
			for _, snap := range all {
				ui.Info().Msgf("%-24v %v (%v bytes)",
					snap.Name, snap.Created.Format(time.DateTime), len(snap.Data))
			}
			ui.Info().Msgf("%v snapshots", len(all))
			return nil
		},
	}
)

func init() {
	loadOutput = loadCmd.Flags().String("output", "snapshot.rag", "Output file for the dump")
	cli.Root.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(saveCmd, loadCmd, listCmd)
}
