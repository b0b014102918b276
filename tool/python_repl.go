package tool

import (
	"context"

	"github.com/datalyst/datalyst/dataset"
	"github.com/datalyst/datalyst/sandbox"
)

const PythonReplName = "python_repl"

const pythonReplDescription = "Execute Python code for data analysis and visualization. " +
	"The code may read a pre-populated DataFrame called `df`. " +
	"If you create Plotly figures, append them to the list `plotly_figures` " +
	"so the execution environment can capture them; do not call fig.show(). " +
	"If you want to return a value, assign it to the variable `result`."

// PythonReplArgs is the argument payload of the python_repl tool.
type PythonReplArgs struct {
	Code     string `json:"code" jsonschema_description:"Python code to execute. Must not call fig.show(); use plotly_figures.append(fig)."`
	Thoughts string `json:"thoughts,omitempty" jsonschema_description:"Optional: private reasoning or intent (not shown to the user)."`
}

// NewPythonRepl binds the sandbox executor as the python_repl tool.
func NewPythonRepl(executor *sandbox.Executor) (*Tool, error) {
	return NewTool[PythonReplArgs](PythonReplName, pythonReplDescription,
		func(ctx context.Context, inv Invocation, ds *dataset.Dataset) (*sandbox.Execution, error) {
			return executor.Execute(ctx, inv.Code, ds)
		})
}
