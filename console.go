package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/taptap-tz/taptap-bot/internal/services"
)

// runConsole plays a conversation over stdin/stdout against the configured
// backend and session store. Type "quit" to leave.
func runConsole(in io.Reader, out io.Writer, conversationID string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	conversations := services.NewConversationManager(a.store, a.flow, services.NewConsoleSender(out), a.metrics)

	fmt.Fprintf(out, "TAPTAP console as %s. Try \"hi\" or \"START|R=<id>|T=<table>\".\n", conversationID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			break
		}
		if err := conversations.HandleMessage(context.Background(), conversationID, line); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}
