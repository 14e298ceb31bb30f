package main

import (
	"log"
	"os"

	"github.com/m3rciful/docshelf/app/bot"
	appconfig "github.com/m3rciful/docshelf/app/config"
	corecmd "github.com/m3rciful/docshelf/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		Args:              os.Args[1:],
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return appconfig.Load(path)
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
