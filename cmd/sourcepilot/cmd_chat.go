package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sourcepilot/internal/types"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat [case-id]",
	Short: "Chat with the copilot about a case",
	Long: `Starts an interactive session for the given case. Every message goes
through intent classification and supervisor routing; agent runs that need
approval leave the case waiting until you approve or reject.

Use -m to send a single message and exit.`,
	Example: `  sourcepilot chat CASE-042
  sourcepilot chat CASE-042 -m "score the shortlisted suppliers"`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send one message and exit")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	if chatMessage != "" {
		return sendMessage(ctx, a, id, chatMessage)
	}

	fmt.Printf("sourcepilot chat for case %s (empty line or /quit to exit)\n\n", id)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "/quit" || line == "/exit" {
			break
		}
		if err := sendMessage(ctx, a, id, line); err != nil {
			return err
		}
		fmt.Println()
	}
	return scanner.Err()
}

func sendMessage(ctx context.Context, a *app, caseID, message string) error {
	resp, err := a.service.ProcessMessage(ctx, caseID, message)
	if err != nil {
		return err
	}
	printResponse(resp)
	return nil
}

func printResponse(resp *types.ChatResponse) {
	fmt.Println(resp.AssistantMessage)
	if len(resp.AgentsCalled) > 0 {
		fmt.Printf("\n[%s | stage %s | %d tokens]\n",
			strings.Join(resp.AgentsCalled, ", "), resp.Stage, resp.TokensUsed)
	}
	if resp.WaitingForHuman {
		fmt.Println("[waiting for your decision: approve or reject]")
	}
}
