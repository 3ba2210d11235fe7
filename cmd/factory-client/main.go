package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/context-factory/api"
	"github.com/ruteri/context-factory/interfaces"
)

var flagServerAddr *cli.StringFlag = &cli.StringFlag{
	Name:  "factory-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "Factory server address to request",
}
var flagCaller *cli.StringFlag = &cli.StringFlag{
	Name:     "caller",
	Required: true,
	Usage:    "Caller context name sent as the identity header",
}

func main() {
	app := &cli.App{
		Name:  "factory client",
		Usage: "Operate a running context factory",
		Flags: []cli.Flag{
			flagServerAddr,
			flagCaller,
		},
		Commands: []*cli.Command{
			{
				Name:        "replace",
				Usage:       "Replace the stored payload",
				Description: "Uploads the given file verbatim as the new payload. Restricted to the factory's own identity.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "payload-file",
						Required: true,
						Usage:    "File with the new payload bytes",
					},
				},
				Action: func(cCtx *cli.Context) error {
					client, err := newClient(cCtx)
					if err != nil {
						return err
					}

					data, err := os.ReadFile(cCtx.String("payload-file"))
					if err != nil {
						return err
					}

					info, err := client.ReplacePayload(context.Background(), data)
					if err != nil {
						return err
					}
					fmt.Printf("payload replaced: size=%d digest=%s\n", info.Size, info.Digest)
					return nil
				},
			},
			{
				Name:        "read",
				Usage:       "Read the stored payload",
				Description: "Writes the current payload bytes to stdout or a file.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the payload to this file instead of stdout",
					},
				},
				Action: func(cCtx *cli.Context) error {
					client, err := newClient(cCtx)
					if err != nil {
						return err
					}

					data, err := client.ReadPayload(context.Background())
					if err != nil {
						return err
					}

					if out := cCtx.String("out"); out != "" {
						return os.WriteFile(out, data, 0644)
					}
					_, err = os.Stdout.Write(data)
					return err
				},
			},
			{
				Name:        "provision",
				Usage:       "Provision a child context",
				Description: "Dispatches a provisioning batch for a new child of the factory. The response confirms dispatch; the outcome is asynchronous.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Required: true,
						Usage:    "Short name of the child, without the factory suffix",
					},
					&cli.StringFlag{
						Name:  "params",
						Value: "{}",
						Usage: "JSON beneficiary parameters forwarded to the child's init call",
					},
					&cli.StringFlag{
						Name:  "public-key",
						Usage: "Hex-encoded credential granting independent control of the child",
					},
					&cli.StringFlag{
						Name:     "attach",
						Required: true,
						Usage:    "Funds to attach, in atomic currency units",
					},
				},
				Action: func(cCtx *cli.Context) error {
					client, err := newClient(cCtx)
					if err != nil {
						return err
					}

					attached, err := interfaces.FundsFromString(cCtx.String("attach"))
					if err != nil {
						return err
					}

					params := json.RawMessage(cCtx.String("params"))
					if !json.Valid(params) {
						return fmt.Errorf("params is not valid JSON")
					}

					resp, err := client.Provision(context.Background(), cCtx.String("name"), api.ProvisionRequest{
						BeneficiaryParams: params,
						PublicKey:         cCtx.String("public-key"),
						AttachedFunds:     attached,
					})
					if err != nil {
						return err
					}
					fmt.Printf("dispatched: batch=%s child=%s\n", resp.BatchID, resp.ChildName)
					return nil
				},
			},
			{
				Name:        "info",
				Usage:       "Show the factory's public parameters",
				Description: "",
				Action: func(cCtx *cli.Context) error {
					client, err := newClient(cCtx)
					if err != nil {
						return err
					}

					info, err := client.Info(context.Background())
					if err != nil {
						return err
					}

					out, err := json.MarshalIndent(info, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(out))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) (*api.Client, error) {
	caller, err := interfaces.NewContextName(cCtx.String(flagCaller.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid caller identity: %w", err)
	}
	return api.NewClient(cCtx.String(flagServerAddr.Name), caller), nil
}
