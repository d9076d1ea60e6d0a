package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/castor/internal/logger"
	"github.com/samcharles93/castor/internal/session"
)

func runCmd() *cli.Command {
	var (
		prompt      string
		system      string
		maxTokens   int64
		temp        float64
		topK        int64
		topP        float64
		minP        float64
		repeatPen   float64
		repeatLastN int64
		seed        int64
		streamMode  string
		rawOutput   bool
		showTokens  bool
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate text from a prompt, or chat interactively",
		Flags: append(append(sessionFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text (omit for interactive mode)",
				Destination: &prompt,
			},
			&cli.StringFlag{
				Name:        "system",
				Aliases:     []string{"sys"},
				Usage:       "optional system prompt",
				Destination: &system,
			},
			&cli.Int64Flag{
				Name:        "max-tokens",
				Aliases:     []string{"n", "steps"},
				Usage:       "max tokens to generate",
				Value:       256,
				Destination: &maxTokens,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature",
				Value:       0.7,
				Destination: &temp,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Aliases:     []string{"top_k", "topk"},
				Usage:       "top-k sampling parameter",
				Value:       40,
				Destination: &topK,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p", "topp"},
				Usage:       "top_p sampling parameter",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Float64Flag{
				Name:        "min-p",
				Aliases:     []string{"min_p", "minp"},
				Usage:       "min_p sampling parameter (0.0 = disabled)",
				Value:       0.05,
				Destination: &minP,
			},
			&cli.Float64Flag{
				Name:        "repeat-penalty",
				Aliases:     []string{"repeat_penalty"},
				Usage:       "repetition penalty (1.0 = disabled)",
				Value:       1.1,
				Destination: &repeatPen,
			},
			&cli.Int64Flag{
				Name:        "repeat-last-n",
				Aliases:     []string{"repeat_last_n"},
				Usage:       "last n tokens to penalize",
				Value:       64,
				Destination: &repeatLastN,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed (default -1 = random)",
				Value:       -1,
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "stream-mode",
				Aliases:     []string{"stream_mode"},
				Usage:       "output mode (instant, typewriter, quiet)",
				Value:       "instant",
				Destination: &streamMode,
			},
			&cli.BoolFlag{
				Name:        "raw-output",
				Usage:       "escape control characters in output",
				Destination: &rawOutput,
			},
			&cli.BoolFlag{
				Name:        "show-tokens",
				Usage:       "print prompt token ids",
				Destination: &showTokens,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRunConfig(c, LoadConfig(),
				&temp, &topK, &topP, &minP, &repeatPen, &maxTokens, &seed, &streamMode)

			log := buildLogger()
			ctx = logger.WithContext(ctx, log)

			m, err := newModel()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ctrl, err := session.New(m, sessionOptions(), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create session: %v", err), 1)
			}
			defer func() { _ = ctrl.Close() }()

			msgs := make([]session.Message, 0, 10)
			interactive := prompt == ""
			if interactive {
				fmt.Fprintln(os.Stderr, "Interactive mode. Type /exit to quit, /reset to clear history.")
			} else {
				msgs = append(msgs, session.Message{Role: "user", Content: prompt})
			}

			for {
				if interactive && (len(msgs) == 0 || msgs[len(msgs)-1].Role != "user") {
					input, err := readInteractiveLine("> ")
					if err != nil {
						if errors.Is(err, io.EOF) {
							break
						}
						return cli.Exit(fmt.Sprintf("error: read input: %v", err), 1)
					}
					switch strings.TrimSpace(input) {
					case "/exit":
						return nil
					case "/reset":
						msgs = msgs[:0]
						continue
					case "":
						continue
					}
					msgs = append(msgs, session.Message{Role: "user", Content: input})
				}

				rendered := renderTranscript(msgs)

				if showTokens {
					ids, err := ctrl.Tokenize(rendered)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: tokenize prompt: %v", err), 1)
					}
					fmt.Fprintf(os.Stderr, "Input tokens (%d): %s\n", len(ids), joinInt32s(ids))
				}

				req := session.Request{
					Prompt:        rendered,
					System:        system,
					MaxTokens:     int(maxTokens),
					Temperature:   temp,
					TopP:          topP,
					TopK:          int(topK),
					MinP:          minP,
					RepeatPenalty: repeatPen,
					RepeatLastN:   int(repeatLastN),
					Seed:          seed,
				}

				sw := NewStreamWriter(StreamMode(streamMode), rawOutput)
				res, err := ctrl.GenerateStream(ctx, req, sw.Write)
				if err != nil {
					sw.Finish()
					fmt.Fprintln(os.Stderr, "error: generation:", err)
					if res == nil {
						return cli.Exit("", 1)
					}
				}
				sw.Finish()

				fmt.Println()
				fmt.Fprintf(os.Stderr, "Stats: %.2f TPS (%d tokens in %s, stop=%s)\n",
					res.Stats.TPS, res.Stats.TokensGenerated, res.Stats.Duration, res.StopReason)

				msgs = append(msgs, session.Message{Role: "assistant", Content: res.Text})

				if !interactive {
					break
				}
			}
			return nil
		},
	}
}

// renderTranscript flattens chat history into a single prompt. The toy
// backend has no chat template, so turns are joined with plain labels.
func renderTranscript(msgs []session.Message) string {
	if len(msgs) == 1 {
		return msgs[0].Content
	}
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

func joinInt32s(ids []int32) string {
	if len(ids) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d", id)
	}
	b.WriteByte(']')
	return b.String()
}
