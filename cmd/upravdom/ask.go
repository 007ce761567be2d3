package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upravdom/upravdom/internal/api"
	"github.com/upravdom/upravdom/internal/conversation"
)

var askCmd = &cobra.Command{
	Use:   "ask <вопрос>",
	Short: "Ask a question and print the answer",
	Long: `Ask a question and print the answer.

Examples:
  upravdom ask "Кто отвечает за протечку стояка?"
  upravdom ask --role resident "Как оспорить начисление за отопление?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roleStr, _ := cmd.Flags().GetString("role")
		question := strings.Join(args, " ")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		sess := conversation.NewSession("cli", api.ParseRole(roleStr))

		printStep("Вопрос: %s", question)
		reply := a.controller.Respond(ctx, sess, conversation.Input{Message: question})

		// A clarification round pauses for one follow-up from the terminal.
		if reply.Stage == conversation.AwaitingClarification {
			fmt.Fprintf(os.Stderr, "%s\n> ", reply.Text)
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() {
				return nil
			}
			reply = a.controller.Respond(ctx, sess, conversation.Input{Message: scanner.Text()})
		}

		fmt.Println(reply.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().String("role", "", "perspective: resident, executor, or mixed (default)")
}
