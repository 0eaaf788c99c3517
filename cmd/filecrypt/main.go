/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/gitrgoliveira/go-filecrypt/internal/config"
)

const version = "0.1.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "filecrypt: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "filecrypt"
	app.Usage = "Encrypted file vault with disguised file names"
	app.Description = "The passphrase is read from the config file or " + config.EnvPrefix + "_PASSPHRASE,\n" +
		"   or prompted for when stdin is a terminal."
	app.Version = version
	app.Flags = getFlags()
	app.Commands = getCommands()
	return app
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "storage-dir, d",
			Usage: "store containers in `DIR` (default: \"uploads\")",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error]",
		},
	}
}

func getCommands() []cli.Command {
	return []cli.Command{
		{
			Name:   "serve",
			Usage:  "serve the HTTP API",
			Action: serveAction,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "listen",
					Usage: "bind to `ADDR` (default: \"" + config.DefaultListen + "\")",
				},
			},
		},
		{
			Name:      "put",
			Usage:     "encrypt and store files",
			ArgsUsage: "FILE...",
			Action:    putAction,
		},
		{
			Name:   "ls",
			Usage:  "list stored files",
			Action: lsAction,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "category",
					Usage: "only list `CATEGORY` [all|audio|image|json|encrypted|other]",
					Value: "all",
				},
			},
		},
		{
			Name:      "get",
			Usage:     "decrypt a stored file",
			ArgsUsage: "NAME",
			Action:    getAction,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write plaintext to `PATH` (default: original name in the current directory)",
				},
				cli.StringFlag{
					Name:  "sha256",
					Usage: "fail unless the plaintext has checksum `HEX`",
				},
				cli.BoolFlag{
					Name:  "force, f",
					Usage: "replace an existing file at the default output path",
				},
			},
		},
		{
			Name:      "preview",
			Usage:     "print the preview payload of a stored file as JSON",
			ArgsUsage: "NAME",
			Action:    previewAction,
		},
		{
			Name:      "rm",
			Usage:     "delete stored files",
			ArgsUsage: "NAME...",
			Action:    rmAction,
		},
	}
}
