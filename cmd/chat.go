package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
)

// chat is a terminal client for a running server, mainly for smoke-testing
// the pipeline end to end.
func init() {
	serverURL := "http://localhost:8080"
	userID := ""

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running assistant from the terminal",
		Run: func(cmd *cobra.Command, args []string) {
			if userID == "" {
				userID = "cli-" + uuid.NewString()
			}

			boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
			boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			faint := color.New(color.Faint).SprintFunc()

			fmt.Println(boldGreen("RedClouds ERP Assistant"))
			fmt.Printf("Server: %s  User: %s\n", boldCyan(serverURL), faint(userID))
			fmt.Println("Type your question and press Enter. Type 'exit' or press Ctrl+C to quit.")
			fmt.Println()

			client := &http.Client{Timeout: 2 * time.Minute}
			var conversationID *uuid.UUID

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print(boldGreen("You: "))
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if strings.EqualFold(question, "exit") {
					break
				}

				response, status, err := sendChat(client, serverURL, v1.ChatRequest{
					Question:       question,
					UserID:         userID,
					ConversationID: conversationID,
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					// Only a lost conversation warrants starting fresh.
					// A conflict means the previous turn is still in
					// flight: keep the id and let the user retry.
					if status == http.StatusNotFound {
						conversationID = nil
					}
					continue
				}
				conversationID = &response.ConversationID

				fmt.Printf("%s %s\n", boldCyan("Assistant:"), response.Response)
				for _, source := range response.Sources {
					fmt.Printf("  %s %s\n", faint("source:"), faint(source.DocumentID))
				}
				if len(response.SuggestedQuestions) > 0 {
					fmt.Println(faint("  You could also ask:"))
					for _, q := range response.SuggestedQuestions {
						fmt.Printf("  %s\n", faint("- "+q))
					}
				}
				fmt.Println()
			}
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", serverURL, "Base URL of the assistant API")
	cmd.Flags().StringVar(&userID, "user", userID, "User identifier (default: a fresh random one)")
	rootCmd.AddCommand(cmd)
}

// sendChat posts one turn. The returned status code is zero when the
// request never reached the server.
func sendChat(client *http.Client, serverURL string, request v1.ChatRequest) (*v1.ChatResponse, int, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, 0, err
	}

	resp, err := client.Post(serverURL+"/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return nil, resp.StatusCode, fmt.Errorf("server returned %s: %s", resp.Status, failure.Message)
	}

	var response v1.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, resp.StatusCode, err
	}
	return &response, resp.StatusCode, nil
}
