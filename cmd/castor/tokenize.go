package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/castor/internal/logger"
	"github.com/samcharles93/castor/internal/session"
)

func tokenizeCmd() *cli.Command {
	var text string

	return &cli.Command{
		Name:  "tokenize",
		Usage: "Print the token ids for a piece of text",
		Flags: append(sessionFlags(),
			&cli.StringFlag{
				Name:        "text",
				Usage:       "text to tokenize",
				Destination: &text,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applySessionConfig(cmd, LoadConfig())

			m, err := newModel()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ctrl, err := session.New(m, sessionOptions(), logger.FromContext(ctx))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create session: %v", err), 1)
			}
			defer func() { _ = ctrl.Close() }()

			if text == "" && cmd.Args().Len() > 0 {
				text = cmd.Args().First()
			}
			ids, err := ctrl.Tokenize(text)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: tokenize: %v", err), 1)
			}
			fmt.Printf("tokens (%d): %s\n", len(ids), joinInt32s(ids))
			return nil
		},
	}
}
