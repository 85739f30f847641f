package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func (a *App) newParametersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parameters",
		Short: "Show the app's input form and enabled features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			params, err := client.Parameters(cmd.Context(), a.endUser())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(params)
			}

			if params.OpeningStatement != "" {
				fmt.Fprintf(a.stdout, "Opening statement: %s\n", params.OpeningStatement)
			}
			features := map[string]bool{
				"suggested questions after answer": params.SuggestedQuestionsAfterAnswer.Enabled,
				"speech to text":                   params.SpeechToText.Enabled,
				"text to speech":                   params.TextToSpeech.Enabled,
				"retriever resource":               params.RetrieverResource.Enabled,
				"annotation reply":                 params.AnnotationReply.Enabled,
				"file upload":                      params.FileUpload.Enabled,
			}
			if img := params.FileUpload.Image; img != nil {
				features["image upload"] = img.Enabled
			}
			var enabled []string
			for name, on := range features {
				if on {
					enabled = append(enabled, name)
				}
			}
			slices.Sort(enabled)
			if len(enabled) > 0 {
				fmt.Fprintf(a.stdout, "Features: %s\n", strings.Join(enabled, ", "))
			}

			if len(params.UserInputForm) == 0 {
				return nil
			}
			fmt.Fprintln(a.stdout, "Inputs:")
			for _, f := range params.UserInputForm {
				req := ""
				if f.Required {
					req = " (required)"
				}
				fmt.Fprintf(a.stdout, "  %s [%s] %s%s", f.Variable, f.Type, f.Label, req)
				if len(f.Options) > 0 {
					fmt.Fprintf(a.stdout, ": %s", strings.Join(f.Options, " | "))
				}
				fmt.Fprintln(a.stdout)
			}
			return nil
		},
	}
}

func (a *App) newMetaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "Show app metadata such as tool icons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			meta, err := client.Meta(cmd.Context(), a.endUser())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(meta)
			}

			tools := make([]string, 0, len(meta.ToolIcons))
			for name := range meta.ToolIcons {
				tools = append(tools, name)
			}
			slices.Sort(tools)
			for _, name := range tools {
				icon := meta.ToolIcons[name]
				if icon.Emoji != nil {
					fmt.Fprintf(a.stdout, "%s\t%s\n", name, icon.Emoji.Content)
				} else {
					fmt.Fprintf(a.stdout, "%s\t%s\n", name, icon.URL)
				}
			}
			return nil
		},
	}
}
