package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/dify-go/dify"
)

// maxParallelUploads caps concurrent uploads from one command.
const maxParallelUploads = 4

func (a *App) newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images for use in messages",
		Long: `Upload one or more images (png, jpeg, webp or gif, at most 10 MiB each).
Pass the printed ids to 'dify chat --file-id'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			user := a.endUser()

			uploaded := make([]*dify.UploadedFile, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(maxParallelUploads)
			for i, path := range args {
				g.Go(func() error {
					f, err := os.Open(path)
					if err != nil {
						return exitWithCode(ExitValidation, err)
					}
					defer f.Close()

					file, err := client.UploadFile(ctx, &dify.UploadFileRequest{
						User:     user,
						Filename: filepath.Base(path),
						Content:  f,
					})
					if err != nil {
						return fmt.Errorf("upload %s: %w", path, err)
					}
					a.logger.Debug("uploaded file", "path", path, "id", file.ID, "size", file.Size)
					uploaded[i] = file
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if a.jsonOutput {
				return a.printJSON(uploaded)
			}
			for i, file := range uploaded {
				fmt.Fprintf(a.stdout, "%s\t%s\n", file.ID, args[i])
			}
			return nil
		},
	}
}

func (a *App) newTranscribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Convert speech to text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}
			defer f.Close()

			out, err := client.AudioToText(cmd.Context(), &dify.AudioToTextRequest{
				User:     a.endUser(),
				Filename: filepath.Base(args[0]),
				Content:  f,
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(out)
			}
			fmt.Fprintln(a.stdout, out.Text)
			return nil
		},
	}
}

func (a *App) newSpeakCommand() *cobra.Command {
	var (
		messageID string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Convert text or a message's answer to speech",
		Long: `Synthesise speech and write the audio to a file.

Examples:
  dify speak --out hello.mp3 "Hello there"
  dify speak --message-id 9da23599-e713-473b-982c-4328d4f5c78a --out answer.mp3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return exitWithCode(ExitValidation, fmt.Errorf("--out is required"))
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			req := &dify.TextToAudioRequest{
				MessageID: messageID,
				User:      a.endUser(),
			}
			if len(args) == 1 {
				req.Text = args[0]
			}

			audio, err := client.TextToAudio(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, audio.Data, 0644); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(map[string]any{
					"path":         outPath,
					"content_type": audio.ContentType,
					"bytes":        len(audio.Data),
				})
			}
			fmt.Fprintf(a.stdout, "Wrote %d bytes of %s to %s.\n", len(audio.Data), audio.ContentType, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&messageID, "message-id", "", "speak the answer of this message")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "file to write the audio to (required)")
	return cmd
}
