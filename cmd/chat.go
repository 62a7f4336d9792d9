package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zeus-insurance/zeus-agent/internal/agent"
)

var (
	chatSession string
	chatMessage string
	chatImage   string
	chatModel   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one message to the assistant and print the reply",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		req := agent.TurnRequest{SessionID: chatSession, Message: chatMessage, Model: chatModel}
		if chatImage != "" {
			raw, err := os.ReadFile(chatImage)
			if err != nil {
				return eris.Wrap(err, "read image")
			}
			req.ImageBase64 = base64.StdEncoding.EncodeToString(raw)
			req.ImageMediaType = http.DetectContentType(raw)
		}

		env, err := initEnv(ctx, "chat")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Agent.Turn(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, resp.Reply)
		fmt.Fprintf(out, "\nsession: %s  tool calls: %d  cost: $%.4f\n", resp.SessionID, len(resp.ToolCalls), resp.CostUSD)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to continue (default new session)")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "message text")
	chatCmd.Flags().StringVar(&chatImage, "image", "", "path to an image to attach")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model override for this turn")
	rootCmd.AddCommand(chatCmd)
}
