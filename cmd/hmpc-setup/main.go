// Command hmpc-setup generates the certificate and Ed25519 signing
// key material a party needs before it can join a run (SPEC_FULL.md
// §2.4, grounded on the original's hmpc-rs/src/bin/{setup,cert,sign}).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/jabolina/hmpc/pkg/hmpc/config"
	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func main() {
	app := &cli.App{
		Name:  "hmpc-setup",
		Usage: "generate certificates and signing keys for an hmpc party",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log info during execution"},
		},
		Commands: []*cli.Command{
			certificateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func certificateCommand() *cli.Command {
	return &cli.Command{
		Name:  "certificate",
		Usage: "generate a self-signed certificate (and optionally a signing key) per party id",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "and-signing-key", Aliases: []string{"s"}, Usage: "also generate an ed25519 signing keypair"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite existing files even if a pair already exists"},
		},
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return cli.Exit("at least one party id is required", 1)
			}

			log := logrus.New()
			if !c.Bool("verbose") {
				log.SetLevel(logrus.WarnLevel)
			}

			path := config.ResolvePath(c.String("config"))
			cfg, err := config.Load(path)
			if err != nil {
				return cli.Exit(err, 1)
			}

			force := c.Bool("force")
			andSigningKey := c.Bool("and-signing-key")

			for _, raw := range ids {
				rawID, err := parsePartyID(raw)
				if err != nil {
					return cli.Exit(err, 1)
				}
				id := types.PartyID(rawID)
				origin, ok := cfg.Roster.Lookup(id)
				if !ok {
					return cli.Exit(fmt.Errorf("party %d is not present in the config's roster", id), 1)
				}

				certPath, certKeyPath, signVerifyPath, signKeyPath := cfg.Directories.KeyPaths(id)

				if err := createOrCheckCertificate(certPath, certKeyPath, origin.Name, force, log); err != nil {
					return cli.Exit(err, 1)
				}

				if andSigningKey {
					if err := createOrCheckSigningKeys(signVerifyPath, signKeyPath, force, log); err != nil {
						return cli.Exit(err, 1)
					}
				}
			}

			return nil
		},
	}
}

func parsePartyID(s string) (uint16, error) {
	var id uint16
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid party id %q: %w", s, err)
	}
	return id, nil
}
