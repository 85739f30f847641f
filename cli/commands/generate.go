package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify-go/dify"
)

// stopTimeout bounds the stop request sent after an interrupted stream.
const stopTimeout = 5 * time.Second

// generateFlags are shared by chat, complete and workflow run.
type generateFlags struct {
	inputs   []string
	images   []string
	fileIDs  []string
	blocking bool
	render   bool
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.inputs, "input", "i", nil, "app input as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.images, "image", nil, "image URL to attach (repeatable)")
	cmd.Flags().StringArrayVar(&f.fileIDs, "file-id", nil, "id of an uploaded image to attach (repeatable)")
	cmd.Flags().BoolVar(&f.blocking, "blocking", false, "wait for the full response instead of streaming")
	cmd.Flags().BoolVar(&f.render, "render", false, "render the answer as markdown")
}

// shouldRender reports whether answers go through the markdown renderer. The
// config default only applies when stdout is a terminal.
func (a *App) shouldRender(f *generateFlags) bool {
	return f.render || (a.cfg.Render && !a.jsonOutput && a.stdoutIsTerminal())
}

func (f *generateFlags) files() []dify.InputFile {
	var files []dify.InputFile
	for _, u := range f.images {
		files = append(files, dify.RemoteImage(u))
	}
	for _, id := range f.fileIDs {
		files = append(files, dify.UploadedImage(id))
	}
	return files
}

func (a *App) newChatCommand() *cobra.Command {
	var (
		flags          generateFlags
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Send a message to a chat app",
		Long: `Send a message to a chat, agent or chatflow app and print the answer.

Examples:
  dify chat "What's the weather like?"
  dify chat --conversation 45701982-8118-4bc5-8e9b-64562b4555f2 "And tomorrow?"
  dify chat --input tone=formal --render "Summarise our refund policy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseInputs(flags.inputs)
			if err != nil {
				return err
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			req := &dify.ChatRequest{
				Query:          strings.Join(args, " "),
				Inputs:         inputs,
				User:           a.endUser(),
				ConversationID: conversationID,
				Files:          flags.files(),
			}

			ctx := cmd.Context()
			if flags.blocking {
				resp, err := client.ChatMessages(ctx, req)
				if err != nil {
					return err
				}
				return a.printMessage(resp, a.shouldRender(&flags))
			}

			s, err := client.StreamChatMessages(ctx, req)
			if err != nil {
				return err
			}
			return a.consumeStream(ctx, s, a.shouldRender(&flags), func(ctx context.Context, taskID string) error {
				return client.StopChatMessage(ctx, taskID, req.User)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation to continue")
	return cmd
}

func (a *App) newCompleteCommand() *cobra.Command {
	var flags generateFlags
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Generate text with a completion app",
		Long: `Generate text with a completion app from its inputs.

Examples:
  dify complete --input query="Write a haiku about autumn"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseInputs(flags.inputs)
			if err != nil {
				return err
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			req := &dify.CompletionRequest{
				Inputs: inputs,
				User:   a.endUser(),
				Files:  flags.files(),
			}

			ctx := cmd.Context()
			if flags.blocking {
				resp, err := client.CompletionMessages(ctx, req)
				if err != nil {
					return err
				}
				return a.printMessage(resp, a.shouldRender(&flags))
			}

			s, err := client.StreamCompletionMessages(ctx, req)
			if err != nil {
				return err
			}
			return a.consumeStream(ctx, s, a.shouldRender(&flags), func(ctx context.Context, taskID string) error {
				return client.StopCompletionMessage(ctx, taskID, req.User)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *App) newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run workflow apps",
	}

	var flags generateFlags
	run := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow and print its outputs",
		Long: `Run a workflow app and print its outputs as JSON.

Examples:
  dify workflow run --input city=Paris
  dify workflow run --blocking --input url=https://example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseInputs(flags.inputs)
			if err != nil {
				return err
			}
			client, err := a.newClient()
			if err != nil {
				return err
			}
			req := &dify.WorkflowRequest{
				Inputs: inputs,
				User:   a.endUser(),
				Files:  flags.files(),
			}

			ctx := cmd.Context()
			if flags.blocking {
				resp, err := client.RunWorkflow(ctx, req)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(resp)
				}
				return a.printWorkflowRun(&resp.Data)
			}

			s, err := client.StreamWorkflow(ctx, req)
			if err != nil {
				return err
			}
			return a.consumeStream(ctx, s, false, func(ctx context.Context, taskID string) error {
				return client.StopWorkflow(ctx, taskID, req.User)
			})
		},
	}
	flags.register(run)
	cmd.AddCommand(run)
	return cmd
}

func (a *App) newStopCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop a streaming generation",
		Long: `Stop a streaming chat, completion or workflow task by its task id.

Examples:
  dify stop c3800678-a077-43df-a102-53f23ed20b88
  dify stop --kind workflow c3800678-a077-43df-a102-53f23ed20b88`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			taskID, user := args[0], a.endUser()

			ctx := cmd.Context()
			switch kind {
			case "chat":
				err = client.StopChatMessage(ctx, taskID, user)
			case "completion":
				err = client.StopCompletionMessage(ctx, taskID, user)
			case "workflow":
				err = client.StopWorkflow(ctx, taskID, user)
			default:
				return exitWithCode(ExitValidation, fmt.Errorf("invalid kind %q: want chat, completion or workflow", kind))
			}
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(map[string]string{"result": "success", "task_id": taskID})
			}
			fmt.Fprintf(a.stdout, "Stopped task %s.\n", taskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "chat", "task kind: chat, completion or workflow")
	return cmd
}

func (a *App) printMessage(resp *dify.MessageResponse, render bool) error {
	if a.jsonOutput {
		return a.printJSON(resp)
	}
	if render {
		a.printMarkdown(resp.Answer)
	} else {
		fmt.Fprintln(a.stdout, resp.Answer)
	}
	a.printConversation(resp.ConversationID)
	return nil
}

func (a *App) printConversation(id string) {
	if id != "" {
		fmt.Fprintf(a.stderr, "conversation: %s\n", id)
	}
}

func (a *App) printWorkflowRun(run *dify.WorkflowRun) error {
	if run.Status == dify.RunStatusFailed {
		fmt.Fprintf(a.stderr, "workflow %s failed: %s\n", run.ID, run.Error)
	}
	return a.printJSON(run.Outputs)
}

// consumeStream prints a stream as it arrives. With --json or --render the
// answer is collected first. If the command is interrupted, the task is
// stopped on the service so it does not keep generating.
func (a *App) consumeStream(ctx context.Context, s *dify.Stream, render bool, stop func(context.Context, string) error) error {
	defer s.Close()
	if a.jsonOutput || render {
		res, err := s.Collect(ctx)
		if err != nil {
			return a.stopOnCancel(ctx, s, stop, err)
		}
		if res.Truncated {
			a.logger.Warn("stream ended early; the answer may be incomplete", "request_id", s.RequestID())
		}
		if a.jsonOutput {
			return a.printJSON(res)
		}
		a.printMarkdown(res.Answer)
		a.printConversation(res.ConversationID)
		return nil
	}

	cancel := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer cancel()

	var (
		conversationID string
		printed        bool
	)
	for ev, err := range s.All() {
		if err != nil {
			return a.stopOnCancel(ctx, s, stop, err)
		}
		if id := ev.Base().ConversationID; id != "" {
			conversationID = id
		}
		switch e := ev.(type) {
		case *dify.MessageEvent:
			fmt.Fprint(a.stdout, e.Answer)
			printed = true
		case *dify.AgentMessageEvent:
			fmt.Fprint(a.stdout, e.Answer)
			printed = true
		case *dify.MessageReplaceEvent:
			fmt.Fprintf(a.stdout, "\n%s", e.Answer)
			printed = true
		case *dify.AgentThoughtEvent:
			if e.Tool != "" {
				a.logger.Info("agent used tool", "tool", e.Tool, "input", e.ToolInput)
			}
		case *dify.NodeStartedEvent:
			a.logger.Debug("node started", "node", e.Data.Title, "type", e.Data.NodeType)
		case *dify.NodeFinishedEvent:
			a.logger.Debug("node finished", "node", e.Data.Title, "status", e.Data.Status)
		case *dify.WorkflowFinishedEvent:
			if err := a.printWorkflowRun(&e.Data); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return a.stopOnCancel(ctx, s, stop, err)
	}
	if printed {
		fmt.Fprintln(a.stdout)
	}
	if s.Truncated() {
		a.logger.Warn("stream ended early; the answer may be incomplete", "request_id", s.RequestID())
	}
	a.printConversation(conversationID)
	return nil
}

func (a *App) stopOnCancel(ctx context.Context, s *dify.Stream, stop func(context.Context, string) error, err error) error {
	if ctx.Err() == nil || s.TaskID() == "" {
		return err
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if stopErr := stop(stopCtx, s.TaskID()); stopErr != nil {
		a.logger.Warn("could not stop task", "task_id", s.TaskID(), "error", stopErr)
	} else {
		a.logger.Info("stopped task", "task_id", s.TaskID())
	}
	return err
}
