package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nutrivision"
	"nutrivision/pipeline"
	"nutrivision/recognition"
	"nutrivision/setup"
	"nutrivision/slack"
)

type rootFlags struct {
	userID string
	debug  bool
}

func main() {
	var flags rootFlags
	root := &cobra.Command{
		Use:          "nutrivision",
		Short:        "Ask the nutrition assistant from the terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.userID, "user", "u", "cli", "user id the chats belong to")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "dump the full turn result")

	root.AddCommand(askCMD(&flags), chatsCMD(&flags), historyCMD(&flags))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp builds the assistant for one command and tears it down afterwards.
func withApp(ctx context.Context, fn func(cfg setup.Config, app *setup.App) error) error {
	cfg, err := setup.LoadConfig()
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	tracerProvider, meterProvider, otelShutdown, err := nutrivision.InitOtel(ctx)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	var logger nutrivision.TurnLogger = nutrivision.NewNoOpTurnLogger()
	if cfg.Assistant.TurnLogPath != "" {
		fileLogger, cleanup, err := setup.TurnLogger(cfg.Assistant.TurnLogPath, cfg.Model.ModelID)
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				slog.Error("SETUP: Failed to flush turn log", "error", err)
			}
		}()
		logger = fileLogger
	}

	app, err := setup.Build(ctx, cfg, tracerProvider, meterProvider, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("SETUP: Failed to close chat store", "error", err)
		}
	}()

	return fn(cfg, app)
}

func askCMD(flags *rootFlags) *cobra.Command {
	var (
		chatID       string
		imagePath    string
		result       string
		diet         string
		allergies    string
		slackWebhook string
		slackChannel string
	)
	ask := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the reply",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req := pipeline.Request{
				UserID:            flags.userID,
				ChatID:            chatID,
				Message:           strings.Join(args, " "),
				RecognitionResult: result,
				Profile:           pipeline.Profile{Diet: diet, Allergies: allergies},
			}
			if imagePath != "" {
				img, err := readImage(imagePath)
				if err != nil {
					return err
				}
				req.Image = img
			}

			return withApp(ctx, func(cfg setup.Config, app *setup.App) error {
				res, err := app.Responder.Respond(ctx, req)
				if err != nil {
					return err
				}
				if flags.debug {
					nutrivision.Dump(os.Stderr, res)
				}

				fmt.Fprintf(os.Stderr, "chat %s (%s)\n", res.ChatID, res.Intent)
				fmt.Fprintln(os.Stdout, res.Display)

				if slackWebhook != "" {
					var notifier nutrivision.SlackClient = slack.NewClient(slackWebhook, http.DefaultClient)
					if err := notifier.PostMessage(ctx, slackChannel, res.Display); err != nil {
						slog.Error("Failed to post reply to Slack", "error", err)
					}
				}
				return nil
			})
		},
	}
	ask.Flags().StringVar(&chatID, "chat", "", "continue an existing chat")
	ask.Flags().StringVar(&imagePath, "image", "", "path to a meal photo")
	ask.Flags().StringVar(&result, "result", "", "recognition payload to use instead of an image")
	ask.Flags().StringVar(&diet, "diet", "", "dietary preference for the profile")
	ask.Flags().StringVar(&allergies, "allergies", "", "allergies for the profile")
	ask.Flags().StringVar(&slackWebhook, "slack", "", "Slack webhook URL to post the reply to")
	ask.Flags().StringVar(&slackChannel, "channel", "", "Slack channel override")
	return ask
}

func chatsCMD(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List the user's chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(cfg setup.Config, app *setup.App) error {
				sessions, err := app.Store.List(ctx, flags.userID)
				if err != nil {
					return err
				}
				if flags.debug {
					nutrivision.Dump(os.Stderr, sessions)
				}
				for _, s := range sessions {
					fmt.Printf("%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Name)
				}
				return nil
			})
		},
	}
}

func historyCMD(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <chatId>",
		Short: "Print the turns of one chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(cfg setup.Config, app *setup.App) error {
				sess, err := app.Store.Get(ctx, flags.userID, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("# %s\n\n", sess.Name)
				for _, t := range sess.Turns {
					fmt.Printf("> %s\n\n%s\n\n", t.UserMessage, t.AssistantReply)
				}
				return nil
			})
		},
	}
}

func readImage(path string) (*recognition.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &recognition.Image{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
	}, nil
}
