package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/openvine/nutzap/cashu/nuts/nut11"
	"github.com/openvine/nutzap/crypto"
	"github.com/openvine/nutzap/nip61"
	"github.com/openvine/nutzap/probe"
)

func main() {
	// optional defaults (e.g. NUTZAP_MINTS) from a local .env
	godotenv.Load()

	app := &cli.App{
		Name:  "nutzap",
		Usage: "inspect and build nutzap protocol data",
		Commands: []*cli.Command{
			keygenCmd,
			lockKeyCmd,
			lockCmd,
			probeCmd,
			inspectCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

var keygenCmd = &cli.Command{
	Name:  "keygen",
	Usage: "generate a keypair and its nutzap locking pubkey",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "mnemonic",
			Usage: "derive the keypair from a BIP-39 mnemonic instead of random bytes",
		},
	},
	Action: func(ctx *cli.Context) error {
		var keyPair crypto.KeyPair
		var err error

		if mnemonic := ctx.String("mnemonic"); mnemonic != "" {
			keyPair, err = crypto.KeyPairFromMnemonic(mnemonic)
		} else {
			keyPair, err = crypto.GenerateKeyPair()
		}
		if err != nil {
			return err
		}

		lockingPubkey, err := crypto.DeriveLockingPubkey(keyPair.PrivateKey)
		if err != nil {
			return err
		}

		fmt.Printf("private key: %s\n", keyPair.PrivateKey)
		fmt.Printf("public key: %s\n", keyPair.PublicKey)
		fmt.Printf("locking pubkey: %s\n", lockingPubkey)
		return nil
	},
}

var lockKeyCmd = &cli.Command{
	Name:      "lockkey",
	Usage:     "derive the normalized locking pubkey for a private key",
	ArgsUsage: "<private key hex>",
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			return errors.New("expected a private key argument")
		}

		lockingPubkey, err := crypto.DeriveLockingPubkey(ctx.Args().First())
		if err != nil {
			return err
		}

		fmt.Println(lockingPubkey)
		return nil
	},
}

var lockCmd = &cli.Command{
	Name:      "lock",
	Usage:     "build a P2PK locking secret for a recipient pubkey",
	ArgsUsage: "<recipient pubkey hex>",
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			return errors.New("expected a recipient pubkey argument")
		}

		secret, _, err := nut11.NewLockingSecret(ctx.Args().First())
		if err != nil {
			return err
		}

		fmt.Println(secret)
		return nil
	},
}

var probeCmd = &cli.Command{
	Name:      "probe",
	Usage:     "check which mints support nutzaps (NUT-10/11/12)",
	ArgsUsage: "[mint url...]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Value: probe.DefaultTimeout,
			Usage: "per-mint probe timeout",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Value: probe.DefaultConcurrency,
			Usage: "number of mints probed at once",
		},
	},
	Action: func(ctx *cli.Context) error {
		mintURLs := ctx.Args().Slice()
		if len(mintURLs) == 0 {
			// fall back to NUTZAP_MINTS from the environment/.env
			for _, mintURL := range strings.Split(os.Getenv("NUTZAP_MINTS"), ",") {
				if mintURL = strings.TrimSpace(mintURL); mintURL != "" {
					mintURLs = append(mintURLs, mintURL)
				}
			}
		}
		if len(mintURLs) == 0 {
			return errors.New("no mints to probe: pass mint urls or set NUTZAP_MINTS")
		}

		prober := probe.New(
			probe.WithTimeout(ctx.Duration("timeout")),
			probe.WithConcurrency(ctx.Int("concurrency")),
		)

		results := prober.ProbeMany(context.Background(), mintURLs)
		for _, result := range results {
			if result.Err != "" {
				fmt.Printf("%s\tunreachable (%s)\n", result.MintURL, result.Err)
				continue
			}
			fmt.Printf("%s\t%s\t%v\n", result.MintURL, result.Security, result.ResponseTime.Round(time.Millisecond))
		}

		if best := probe.PickBest(results); best != nil {
			fmt.Printf("\nbest mint: %s (%s)\n", best.MintURL, best.Security)
		} else {
			fmt.Println("\nno compatible mint found")
		}
		return nil
	},
}

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "validate a nutzap or nutzap info event (json from file or stdin)",
	ArgsUsage: "[file]",
	Action: func(ctx *cli.Context) error {
		var eventJson []byte
		var err error

		if ctx.Args().Len() > 0 && ctx.Args().First() != "-" {
			eventJson, err = os.ReadFile(ctx.Args().First())
		} else {
			eventJson, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}

		var event nostr.Event
		if err := json.Unmarshal(eventJson, &event); err != nil {
			return fmt.Errorf("invalid event json: %v", err)
		}

		switch event.Kind {
		case nip61.KindNutzapInfo:
			if !nip61.IsValidNutzapInfoEvent(&event) {
				return errors.New("invalid nutzap info event")
			}
			info, err := nip61.InfoFromEvent(&event)
			if err != nil {
				return err
			}
			fmt.Printf("nutzap info for %s\n", event.PubKey)
			fmt.Printf("  p2pk pubkey: %s\n", info.PublicKey)
			fmt.Printf("  mints: %s\n", strings.Join(info.Mints, ", "))
			fmt.Printf("  relays: %s\n", strings.Join(info.Relays, ", "))
		case nip61.KindNutzap:
			if !nip61.IsValidNutzapEvent(&event) {
				return errors.New("invalid nutzap event")
			}
			fmt.Printf("nutzap of %d sats from %s\n", nip61.Amount(&event), event.PubKey)
			fmt.Printf("  mint: %s\n", nip61.MintURL(&event))
			fmt.Printf("  recipient: %s\n", nip61.Recipient(&event))
			if referenced := nip61.ReferencedEvent(&event); referenced != "" {
				fmt.Printf("  nutzapped event: %s\n", referenced)
			}
			if event.Content != "" {
				fmt.Printf("  comment: %s\n", event.Content)
			}
		default:
			return fmt.Errorf("unexpected event kind %d", event.Kind)
		}
		return nil
	},
}
