// Package demo wires a complete sample session: an in-memory host document,
// the in-process engine registry, a handful of markers falling under a
// solver, and a dump export at the end. Exists to exercise the whole stack
// from the command line.
package demo

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	_ "github.com/rigbridge/rigbridge/modules/archetypes"
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/cli"
	"github.com/rigbridge/rigbridge/modules/dump"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/settings"
	"github.com/rigbridge/rigbridge/modules/types"
	"github.com/rigbridge/rigbridge/modules/ui"
)

var (
	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run a sample scene through the frame loop",
		RunE:  executeDemo,
	}

	frames *int
	output *string
)

func init() {
	frames = demoCmd.Flags().Int("frames", 0, "Number of frames to simulate (0 = one second at the preferred frame rate)")
	output = demoCmd.Flags().String("output", "", "Write a dump of the final state to this file")
	cli.Root.AddCommand(demoCmd)
}

// Build populates a document with a solver and three markers and returns the
// wired scene. Shared between the demo and serve commands.
func Build(doc *host.MemDocument, binding engine.Binding) (*scene.Scene, error) {
	session := bridge.NewSession(doc)
	sc := scene.New(session, binding)

	solverObj := doc.CreateObject("rSolver", host.KindEmpty)
	solver, err := session.Wrap(solverObj)
	if err != nil {
		return nil, err
	}
	if _, err := sc.Initialize(solver, "rdSolver"); err != nil {
		return nil, err
	}

	gravity, err := solver.Property("gravity")
	if err != nil {
		return nil, err
	}
	if err := gravity.Write(types.Vector3{0, 0, -9.81}); err != nil {
		return nil, err
	}

	members := make([]*bridge.Proxy, 0, 3)
	names := []string{"rMarker_hip", "rMarker_spine", "rMarker_head"}
	for i, name := range names {
		obj := doc.CreateObject(name, host.KindMesh)
		obj.SetMatrix(types.TranslationMatrix(types.Vector3{0, 0, float64(i + 1)}))

		marker, err := session.Wrap(obj)
		if err != nil {
			return nil, err
		}
		if _, err := sc.Initialize(marker, "rdMarker"); err != nil {
			return nil, err
		}

		// Dynamic bodies, so something actually moves
		input, err := marker.Property("inputType")
		if err != nil {
			return nil, err
		}
		if err := input.Write("Pose"); err != nil {
			return nil, err
		}
		members = append(members, marker)
	}

	// Chain the markers parent to child
	for i := 1; i < len(members); i++ {
		parent, err := members[i].Property("parentMarker")
		if err != nil {
			return nil, err
		}
		if err := parent.Write(members[i-1]); err != nil {
			return nil, err
		}
	}

	list, err := solver.Property("members")
	if err != nil {
		return nil, err
	}
	if err := list.Write(members); err != nil {
		return nil, err
	}

	return sc, nil
}

func executeDemo(cmd *cobra.Command, args []string) error {
	doc := host.NewMemDocument()
	registry := engine.NewRegistry()

	sc, err := Build(doc, registry)
	if err != nil {
		return err
	}

	count := *frames
	if count <= 0 {
		count, _ = settings.Get("frameRate").(int)
	}

	sc.SetStartFrame(1)
	for frame := 1; frame <= count; frame++ {
		doc.SetFrame(frame)
	}

	for _, marker := range sc.Typed("rdMarker") {
		m, err := marker.Matrix()
		if err != nil {
			continue
		}
		ui.Info().Msgf("%-16v frame %v at %v", marker.Name(), count, m.Translation())
	}

	if *output != "" {
		data, err := dump.Export(registry)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			return errors.Wrapf(err, "writing %v", *output)
		}
		ui.Info().Msgf("Wrote %v bytes to %v", len(data), *output)
	}

	return nil
}
