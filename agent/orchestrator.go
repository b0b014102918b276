package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/datalyst/datalyst/dataset"
	"github.com/datalyst/datalyst/model"
	"github.com/datalyst/datalyst/sandbox"
	"github.com/datalyst/datalyst/stream"
	"github.com/datalyst/datalyst/tool"
)

// State names one phase of a turn. Every turn moves Decide -> (Dispatch ->
// Decide)* -> [Finalize] -> Terminated.
type State string

const (
	StateDecide     State = "decide"
	StateDispatch   State = "dispatch"
	StateFinalize   State = "finalize"
	StateTerminated State = "terminated"
)

// DefaultStepLimit caps how many model decisions a single turn may take.
const DefaultStepLimit = 25

type OrchestratorOptions struct {
	ModelName    string
	SystemPrompt string
	StepLimit    int
	Toolbox      *tool.Toolbox
	Checkpointer Checkpointer
	Hub          *stream.Hub[Result]
	Logger       *slog.Logger
}

func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		ModelName:    model.DefaultGeminiModel,
		SystemPrompt: DefaultSystemPrompt,
		StepLimit:    DefaultStepLimit,
		Toolbox:      tool.NewToolbox(),
		Checkpointer: NewMemoryCheckpointer(),
		Logger:       slog.Default(),
	}
}

type OrchestratorOption func(*OrchestratorOptions)

func WithModelName(name string) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.ModelName = name
	}
}

func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.SystemPrompt = prompt
	}
}

func WithStepLimit(limit int) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.StepLimit = limit
	}
}

func WithToolbox(toolbox *tool.Toolbox) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.Toolbox = toolbox
	}
}

func WithCheckpointer(cp Checkpointer) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.Checkpointer = cp
	}
}

func WithHub(hub *stream.Hub[Result]) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.Hub = hub
	}
}

func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *OrchestratorOptions) {
		o.Logger = logger
	}
}

// Orchestrator drives conversations: it asks the model what to do, executes
// the tool calls it requests, and records every result on the thread.
type Orchestrator struct {
	provider     model.ModelProvider
	modelName    string
	systemPrompt string
	stepLimit    int
	toolbox      *tool.Toolbox
	checkpoints  Checkpointer
	hub          *stream.Hub[Result]
	logger       *slog.Logger
}

func NewOrchestrator(provider model.ModelProvider, opts ...OrchestratorOption) *Orchestrator {
	options := DefaultOrchestratorOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Orchestrator{
		provider:     provider,
		modelName:    options.ModelName,
		systemPrompt: options.SystemPrompt,
		stepLimit:    options.StepLimit,
		toolbox:      options.Toolbox,
		checkpoints:  options.Checkpointer,
		hub:          options.Hub,
		logger:       options.Logger,
	}
}

// TurnResult summarizes one completed turn.
type TurnResult struct {
	Answer  string
	Results []Result
	Usage   model.Usage
	Cost    decimal.Decimal
}

// RunTurn appends the user message to the thread and runs the state machine
// to termination. Tool results accumulate on the thread's result log as they
// happen; the thread is checkpointed before RunTurn returns, including when
// the step limit aborts the turn.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID, userMessage string, ds *dataset.Dataset) (*TurnResult, error) {
	if o.provider == nil {
		return nil, ErrModelNotConfigured
	}
	if ds == nil {
		return nil, ErrMissingDataset
	}

	thread, err := o.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		thread = NewThread(threadID)
	}

	if !thread.hasSystemMessage() {
		thread.Messages = append([]*model.Message{model.NewSystemMessage(o.systemPrompt)}, thread.Messages...)
	}
	thread.appendMessage(model.NewUserMessage(userMessage))

	baseline := thread.Results.Len()
	steps := 0

	for state := StateDecide; state != StateTerminated; {
		switch state {
		case StateDecide:
			steps++
			if steps > o.stepLimit {
				return nil, o.abort(ctx, thread, &StepLimitError{Limit: o.stepLimit})
			}
			state, err = o.decide(ctx, thread)
			if err != nil {
				return nil, o.abort(ctx, thread, err)
			}

		case StateDispatch:
			if err := o.dispatch(ctx, thread, ds); err != nil {
				return nil, o.abort(ctx, thread, err)
			}
			state = StateDecide

		case StateFinalize:
			o.finalize(thread)
			state = StateTerminated
		}
	}

	if err := o.checkpoints.Save(ctx, thread); err != nil {
		return nil, err
	}

	var answer string
	if last := thread.lastMessage(); last != nil && last.Source == model.MessageSourceModel {
		answer = last.Text()
	}

	entries := thread.Results.Entries()
	return &TurnResult{
		Answer:  answer,
		Results: entries[baseline:],
		Usage:   thread.Usage,
		Cost:    thread.Cost,
	}, nil
}

// decide asks the model for the next move and routes on the response: tool
// calls go to dispatch, a plain answer after tool work goes to finalize, and
// anything else terminates the turn.
func (o *Orchestrator) decide(ctx context.Context, thread *Thread) (State, error) {
	tools := make([]model.Tool, 0, len(o.toolbox.List()))
	for _, t := range o.toolbox.List() {
		tools = append(tools, t)
	}

	response, err := o.provider.InvokeModel(ctx, o.modelName, "", thread.Messages,
		model.WithTools(tools...))
	if err != nil {
		return StateTerminated, fmt.Errorf("model invocation failed: %w", err)
	}

	thread.appendMessage(response)
	thread.Usage.Add(response.Usage)
	if m, ok := model.LookupModel(o.modelName); ok {
		thread.Cost = thread.Cost.Add(model.CalculateCost(response.Usage, m.Pricing))
	}

	if len(response.ToolCalls()) > 0 {
		return StateDispatch, nil
	}
	if thread.Results.AwaitingAnswer() {
		return StateFinalize, nil
	}
	return StateTerminated, nil
}

// dispatch executes every tool call on the last model message, in request
// order. Each call appends exactly one result entry and one tool response
// message, whether it succeeded, failed in user code, or named a tool we
// don't have.
func (o *Orchestrator) dispatch(ctx context.Context, thread *Thread, ds *dataset.Dataset) error {
	last := thread.lastMessage()
	if last == nil {
		return nil
	}

	for _, call := range last.ToolCalls() {
		inv := tool.Extract(last, call)

		var execution *sandbox.Execution
		if t, ok := o.toolbox.Lookup(call.Tool); ok {
			var err error
			execution, err = t.Run(ctx, inv, ds)
			if err != nil {
				return fmt.Errorf("tool %s failed: %w", call.Tool, err)
			}
		} else {
			execution = &sandbox.Execution{Error: fmt.Sprintf("Unknown tool: %s", call.Tool)}
		}

		entry := Result{
			Kind:      ResultKindToolResult,
			Tool:      call.Tool,
			Thoughts:  inv.Thoughts,
			Stdout:    execution.Stdout,
			Value:     execution.Result,
			HasValue:  execution.HasResult,
			Figures:   execution.Figures,
			Error:     execution.Error,
			Timestamp: time.Now().UTC(),
		}
		thread.Results.Append(entry)
		o.publish(thread.ID, entry)

		o.logger.Debug("tool dispatched",
			"thread_id", thread.ID,
			"tool", call.Tool,
			"figures", len(execution.Figures),
			"errored", execution.Error != "")

		thread.appendMessage(model.NewToolResponseMessage(call.ID, call.Tool, execution.Render()))
	}

	return nil
}

// finalize records the model's closing message as an ai_message entry so the
// result log shows tool output and prose in the order they were produced.
func (o *Orchestrator) finalize(thread *Thread) {
	var content string
	if last := thread.lastMessage(); last != nil {
		content = last.Text()
	}

	entry := Result{
		Kind:      ResultKindAIMessage,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	thread.Results.Append(entry)
	o.publish(thread.ID, entry)
}

// abort checkpoints the thread before a turn fails so results appended
// earlier in the turn stay on the durable log, then hands back the error.
func (o *Orchestrator) abort(ctx context.Context, thread *Thread, err error) error {
	if saveErr := o.checkpoints.Save(ctx, thread); saveErr != nil {
		o.logger.Error("failed to checkpoint thread on abort",
			"thread_id", thread.ID, "error", saveErr)
	}
	return err
}

func (o *Orchestrator) publish(threadID string, entry Result) {
	if o.hub != nil {
		o.hub.Publish(threadID, entry)
	}
}
