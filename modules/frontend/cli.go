package frontend

import (
	"github.com/spf13/cobra"

	"github.com/rigbridge/rigbridge/modules/cli"
	"github.com/rigbridge/rigbridge/modules/demo"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/host"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the inspection API over a demo session",
		RunE:  executeServe,
	}

	bind *string
)

func init() {
	bind = serveCmd.Flags().String("bind", "127.0.0.1:8080", "Address and port to bind to")
	cli.Root.AddCommand(serveCmd)
}

func executeServe(cmd *cobra.Command, args []string) error {
	doc := host.NewMemDocument()
	registry := engine.NewRegistry()

	sc, err := demo.Build(doc, registry)
	if err != nil {
		return err
	}
	doc.SetFrame(1)

	return NewWebservice(sc).Serve(*bind)
}
