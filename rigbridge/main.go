package main

import (
	"os"

	_ "github.com/rigbridge/rigbridge/modules/archetypes"
	"github.com/rigbridge/rigbridge/modules/cli"
	_ "github.com/rigbridge/rigbridge/modules/demo"
	_ "github.com/rigbridge/rigbridge/modules/dump"
	_ "github.com/rigbridge/rigbridge/modules/frontend"
	_ "github.com/rigbridge/rigbridge/modules/persistence"
	"github.com/rs/zerolog/log"
)

func main() {
	err := cli.Run()

	if err != nil {
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}
