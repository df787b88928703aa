package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
	"github.com/ersonp/spellstock-core/internal/domain/services"
)

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent [MESSAGE]",
		Short: "Manage actions in plain language",
		Long: `Translates requests like "approve every chicken order" into commands.
With a message, runs it once. Without one, starts an interactive session where
filters carry over from one request to the next.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAgent,
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withDeps(ctx, func(d *Deps) error {
		if d.AgentHandler == nil {
			return errors.New("agent needs an LLM key (set llm.api_key or OPENAI_API_KEY)")
		}
		session := &services.Session{}
		if len(args) == 1 {
			return agentTurn(ctx, d.AgentHandler, session, args[0])
		}
		return agentLoop(ctx, d.AgentHandler, session, os.Stdin)
	})
}

func agentLoop(ctx context.Context, agent *handlers.AgentHandler, session *services.Session, in io.Reader) error {
	fmt.Println("SpellStock agent. Describe what you want to see or do.")
	fmt.Println("Commands: 'filter' to show the current filter, 'quit' to exit")
	fmt.Println()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "filter":
			fmt.Printf("Current filter: %s\n", session.CurrentFilter())
			continue
		}

		if err := agentTurn(ctx, agent, session, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

func agentTurn(ctx context.Context, agent *handlers.AgentHandler, session *services.Session, text string) error {
	res, err := agent.Handle(ctx, session, text)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] %s\n", res.Command.Intent, res.Result.Message)
	if res.Result.Bulk != nil {
		displayBulk(res.Result.Bulk)
	}
	if len(res.Result.Actions) > 0 {
		displayActions(res.Result.Actions)
	}
	return nil
}
