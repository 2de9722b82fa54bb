// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Main entrypoint for ifv application

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/StarFishzt/images-from-videos/internal/logging"
)

// root represents top level of ifv command, including dispatching to subcommands.
func root(args []string) error {
	usage := `ifv - Images From Videos

Usage:

    ifv <command> [arguments] [-h|-help]

The commands are:

    extract     decode video files and save selected frames as images
    probe       print video stream metadata as JSON
    scoreplot   create sharpness plot from extraction scores JSON
    dump-conf   output actual application configuration
    version     print ifv version and exit

Use "ifv <command> -h|-help" for more information about command.`

	if len(args) < 1 {
		fmt.Println(usage)
		return &AppError{msg: "please, specify command", exitCode: 2}
	}

	switch args[0] {
	case "extract":
		return CreateExtractCommand().Run(args[1:])
	case "probe":
		return CreateProbeCommand().Run(args[1:])
	case "scoreplot":
		return CreateScorePlotCommand().Run(args[1:])
	case "dump-conf", "dump":
		return CreateDumpConfCommand().Run(args[1:])
	case "version":
		printVersion()
		return nil
	case "-h", "-help", "--help", "?":
		fmt.Println(usage)
		return &AppError{
			exitCode: 2,
		}
	default:
		// No commands were matched at this point, so bail out with default usage message.
		fmt.Println(usage)
		return &AppError{
			msg:      "unknown command/flag",
			exitCode: 2,
		}
	}
}

func main() {
	// Enable info logger by default and early enough.
	logging.EnableInfoLogger()

	// Tool path overrides can live in a local .env file, absence is fine.
	_ = godotenv.Load()

	if err := root(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		switch e := err.(type) {
		case *AppError:
			os.Exit(e.ExitCode())
		default:
			os.Exit(1)
		}
	}
	os.Exit(0)
}
