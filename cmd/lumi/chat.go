package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/lumiavatar/internal/avatar3d"
	"github.com/normanking/lumiavatar/internal/chat"
	"github.com/normanking/lumiavatar/internal/payload"
)

func chatCmd() *cobra.Command {
	var (
		stream  bool
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the chat backend",
		Long: `Send one message to the chat backend and print the reply. With --publish
the reply is also written to the payload sink so a running viewer speaks it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			message := strings.Join(args, " ")
			client := chat.NewClient(chat.ConfigFromAPI(cfg.API), log.Zerolog())

			var (
				resp *chat.Response
				err  error
			)
			if stream {
				resp, err = client.Stream(ctx, message, func(ev chat.StreamEvent) error {
					switch ev.Type {
					case chat.StreamToken:
						fmt.Print(ev.Content)
					case chat.StreamTool:
						fmt.Fprintf(os.Stderr, "[tool] %s\n", ev.ToolName)
					case chat.StreamThinking:
						if verbose {
							fmt.Fprintf(os.Stderr, "[thinking] %s\n", ev.Node)
						}
					}
					return nil
				})
				fmt.Println()
			} else {
				resp, err = client.Send(ctx, message)
			}
			if err != nil {
				return err
			}
			if resp == nil {
				return errors.New("backend sent no response")
			}

			if !stream {
				fmt.Println(resp.Reply())
			}
			if !publish {
				return nil
			}

			raw, err := resp.Payload().Encode()
			if err != nil {
				return err
			}
			return publishRaw(ctx, raw)
		},
	}

	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "stream the reply as it is generated")
	cmd.Flags().BoolVarP(&publish, "publish", "p", false, "publish the reply to the payload sink")
	return cmd
}

func sayCmd() *cobra.Command {
	var (
		emotion string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Publish text with generated visemes",
		Long: `Build a payload for the text with a viseme timeline approximated from
its vowels and publish it to the payload sink. No backend is needed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if emotion != "" && avatar3d.NormalizeEmotion(emotion) == avatar3d.EmotionNeutral && emotion != string(avatar3d.EmotionNeutral) {
				log.Warn("say", "Unknown emotion, the avatar will stay neutral", map[string]interface{}{"emotion": emotion})
			}
			p := &payload.Payload{
				Text:    text,
				Emotion: emotion,
				Visemes: avatar3d.VisemesFromText(text),
			}
			raw, err := p.Encode()
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Println(raw)
				return nil
			}
			return publishRaw(context.Background(), raw)
		},
	}

	cmd.Flags().StringVarP(&emotion, "emotion", "e", "neutral", "emotion label (happy, sad, angry, neutral)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the payload instead of publishing it")
	return cmd
}

func publishRaw(ctx context.Context, raw string) error {
	sink, closeSink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	if err := sink.Publish(ctx, raw); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	log.Info("main", "Payload published", map[string]interface{}{
		"source": cfg.Payload.Source,
		"bytes":  len(raw),
	})
	return nil
}
