package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acn-rai/rai-memory/agent"
	"github.com/acn-rai/rai-memory/memory"
	"github.com/acn-rai/rai-memory/observable"
)

type demoFlags struct {
	user     string
	messages []string
	agents   []string
	cycles   int
}

var defaultDemoMessages = []string{
	"What do you remember about my travel plans?",
	"I am flying to Lisbon in May and prefer window seats.",
	"Which seat should you book for my Lisbon flight?",
}

var demoFacts = []string{
	"Users prefer concise answers",
	"Travel requests mention a destination and a month",
}

// NewDemoCommand creates the "demo" command.
func NewDemoCommand(root *rootFlags) *cobra.Command {
	flags := &demoFlags{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a short agent conversation and learning cycles",
		Long: `Seed the memory graph, run a conversation with BasicRAIAgent, broadcast a
question to several agents and run learning cycles, then print a summary.

Without RAI_AGENT_API_KEY the agents echo instead of calling Claude.

Examples:
  raimemory demo
  raimemory demo --message "hello" --agents analyst,critic --cycles 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.user, "user", "demo-user", "Owner ID for the conversation")
	cmd.Flags().StringArrayVarP(&flags.messages, "message", "m", nil, "Message to send (repeatable)")
	cmd.Flags().StringSliceVar(&flags.agents, "agents", []string{"analyst", "critic"}, "Extra agents for the broadcast")
	cmd.Flags().IntVar(&flags.cycles, "cycles", 1, "Learning cycles to run after the broadcast")
	return cmd
}

type demoTurn struct {
	Agent    string `json:"agent"`
	Message  string `json:"message"`
	Text     string `json:"text"`
	Recalled int    `json:"recalled"`
}

type demoSummary struct {
	Turns         []demoTurn             `json:"turns"`
	Broadcast     *agent.BroadcastResult `json:"broadcast,omitempty"`
	Cycles        int                    `json:"cycles"`
	Nodes         map[string]int         `json:"nodes"`
	Relationships int                    `json:"relationships"`
	Markers       int                    `json:"markers"`
	Decisions     int                    `json:"decisions"`
}

func runDemo(cmd *cobra.Command, root *rootFlags, flags *demoFlags) (err error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Start(ctx); err != nil {
		_ = app.Stop(context.WithoutCancel(ctx))
		return err
	}
	defer func() {
		if stopErr := app.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	for _, fact := range demoFacts {
		if _, err := app.Graph.CreateNode(ctx, memory.NodeLearning, fact, nil); err != nil {
			return fmt.Errorf("seed graph: %w", err)
		}
	}

	messages := flags.messages
	if len(messages) == 0 {
		messages = defaultDemoMessages
	}

	summary := demoSummary{}
	for _, msg := range messages {
		resp, err := app.Agent.Respond(ctx, flags.user, msg)
		if err != nil {
			return err
		}
		summary.Turns = append(summary.Turns, demoTurn{
			Agent:    resp.Agent,
			Message:  msg,
			Text:     resp.Text,
			Recalled: len(resp.Recalled),
		})
	}

	for _, name := range flags.agents {
		extra := agent.New(app.Graph, app.Behavior,
			agent.WithName(name),
			agent.WithResponder(agent.NewResponder(cfg.Agent)),
			agent.WithIndex(app.Bridge, cfg.Agent.RecallLimit),
		)
		if err := app.Multi.Add(extra); err != nil {
			return err
		}
	}

	broadcast, err := app.Multi.Broadcast(ctx, flags.user, messages[len(messages)-1])
	if err != nil {
		return err
	}
	summary.Broadcast = broadcast

	for i := 0; i < flags.cycles; i++ {
		app.Graph.RunLearningCycle(ctx)
	}

	summary.Cycles = app.Graph.CycleCount()
	summary.Nodes = make(map[string]int)
	for _, n := range app.Graph.Nodes() {
		summary.Nodes[n.Type]++
	}
	summary.Relationships = len(app.Graph.Relationships())
	summary.Markers = len(app.Behavior.Patterns(observable.PatternFilter{}))
	summary.Decisions = len(app.Behavior.Decisions())

	return writeJSON(cmd.OutOrStdout(), summary)
}
