package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datalyst/datalyst/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported models and their token pricing",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROVIDER\tCONTEXT\tINPUT $/MTOK\tOUTPUT $/MTOK")
		for _, provider := range []model.ProviderKind{model.ProviderKindGemini, model.ProviderKindAnthropic, model.ProviderKindOpenAI} {
			for _, m := range model.SupportedModels(provider) {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.3f\t%.3f\n",
					m.Name, m.Provider, m.ContextWindow, m.Pricing.Input, m.Pricing.Output)
			}
		}
		w.Flush()
	},
}
