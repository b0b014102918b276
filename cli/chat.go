package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/datalyst/datalyst/agent"
	"github.com/datalyst/datalyst/artifact"
	"github.com/datalyst/datalyst/dataset"
	"github.com/datalyst/datalyst/model"
	"github.com/datalyst/datalyst/sandbox"
	"github.com/datalyst/datalyst/stream"
	"github.com/datalyst/datalyst/tool"
)

var chatOptions struct {
	Dataset    string
	Model      string
	Thread     string
	Checkpoint string
	FiguresDir string
	Timeout    time.Duration
	StepLimit  int
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis session over a CSV dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(chatOptions.Dataset)
		if err != nil {
			return err
		}

		provider, err := buildProvider(cmd, chatOptions.Model)
		if err != nil {
			return err
		}

		store, err := artifact.NewStore(afero.NewOsFs(), artifact.WithDir(chatOptions.FiguresDir))
		if err != nil {
			return err
		}

		repl, err := tool.NewPythonRepl(sandbox.NewExecutor(store, sandbox.WithTimeout(chatOptions.Timeout)))
		if err != nil {
			return err
		}

		hub, err := stream.NewHub[agent.Result]()
		if err != nil {
			return err
		}

		checkpointer, closeCheckpointer, err := buildCheckpointer(chatOptions.Checkpoint)
		if err != nil {
			return err
		}
		defer closeCheckpointer()

		orch := agent.NewOrchestrator(provider,
			agent.WithModelName(chatOptions.Model),
			agent.WithToolbox(tool.NewToolbox(repl)),
			agent.WithCheckpointer(checkpointer),
			agent.WithStepLimit(chatOptions.StepLimit),
			agent.WithHub(hub),
		)

		threadID := chatOptions.Thread
		if threadID == "" {
			threadID = uuid.NewString()
		}

		return runChatLoop(cmd, orch, hub, threadID, ds)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatOptions.Dataset, "dataset", "d", "", "Path to the CSV dataset to analyze")
	chatCmd.Flags().StringVarP(&chatOptions.Model, "model", "m", model.DefaultGeminiModel, "The model to converse with")
	chatCmd.Flags().StringVarP(&chatOptions.Thread, "thread", "t", "", "Thread ID to continue (defaults to a new thread)")
	chatCmd.Flags().StringVar(&chatOptions.Checkpoint, "checkpoint", "", "Path to a SQLite file for durable threads (defaults to in-memory)")
	chatCmd.Flags().StringVar(&chatOptions.FiguresDir, "figures-dir", artifact.DefaultDir, "Directory where generated figures are stored")
	chatCmd.Flags().DurationVar(&chatOptions.Timeout, "timeout", sandbox.DefaultTimeout, "Deadline for a single code execution")
	chatCmd.Flags().IntVar(&chatOptions.StepLimit, "step-limit", agent.DefaultStepLimit, "Maximum model decisions per turn")

	chatCmd.MarkFlagRequired("dataset")
}

func loadDataset(path string) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	ds, err := dataset.ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return ds, nil
}

// buildProvider resolves the configured model to its provider and constructs
// it from the matching API key in the environment.
func buildProvider(cmd *cobra.Command, name string) (model.ModelProvider, error) {
	m, ok := model.LookupModel(name)
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}

	switch m.Provider {
	case model.ProviderKindGemini:
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("GEMINI_API_KEY is not set")
		}
		return model.NewGeminiProvider(cmd.Context(), apiKey)
	case model.ProviderKindAnthropic:
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return model.NewAnthropicProvider(apiKey)
	case model.ProviderKindOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return model.NewOpenAIProvider(apiKey)
	}

	return nil, fmt.Errorf("no provider for model %s", name)
}

func buildCheckpointer(path string) (agent.Checkpointer, func(), error) {
	if path == "" {
		return agent.NewMemoryCheckpointer(), func() {}, nil
	}

	cp, err := agent.NewSQLiteCheckpointer(path)
	if err != nil {
		return nil, nil, err
	}
	return cp, func() { cp.Close() }, nil
}

func runChatLoop(cmd *cobra.Command, orch *agent.Orchestrator, hub *stream.Hub[agent.Result], threadID string, ds *dataset.Dataset) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Thread %s, dataset with %d rows and %d columns. Type 'exit' to quit.\n",
		threadID, ds.NumRows(), ds.NumColumns())

	entries, cancel := hub.Subscribe(threadID)
	defer cancel()
	go func() {
		for entry := range entries {
			printResult(out, entry)
		}
	}()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\nYou> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		turn, err := orch.RunTurn(cmd.Context(), threadID, question, ds)
		var limitErr *agent.StepLimitError
		if errors.As(err, &limitErr) {
			fmt.Fprintln(out, "No response generated - the agent may have hit a recursion limit or failed to respond.")
			continue
		}
		if err != nil {
			return err
		}

		if len(turn.Results) == 0 && turn.Answer != "" {
			fmt.Fprintf(out, "\nAssistant> %s\n", turn.Answer)
		}
		fmt.Fprintf(out, "\n[%d input tokens, %d output tokens, $%s]\n",
			turn.Usage.InputTokens, turn.Usage.OutputTokens, turn.Cost.StringFixed(6))
	}
}

func printResult(w io.Writer, entry agent.Result) {
	switch entry.Kind {
	case agent.ResultKindToolResult:
		fmt.Fprintf(w, "\n[tool %s]\n", entry.Tool)
		if entry.Thoughts != "" {
			fmt.Fprintf(w, "thoughts: %s\n", entry.Thoughts)
		}
		if entry.Stdout != "" {
			fmt.Fprint(w, entry.Stdout)
		}
		if entry.HasValue {
			fmt.Fprintf(w, "result: %s\n", entry.Value)
		}
		for _, ref := range entry.Figures {
			fmt.Fprintf(w, "figure saved: %s\n", ref)
		}
		if entry.Error != "" {
			fmt.Fprintf(w, "error: %s\n", entry.Error)
		}
	case agent.ResultKindAIMessage:
		fmt.Fprintf(w, "\nAssistant> %s\n", entry.Content)
	}
}
