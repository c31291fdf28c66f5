package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flowscope/internal/vitals"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <metric> <value> [value]",
	Short: "Classify a single vital-sign reading",
	Long: `Classify a reading into healthy, concerning or critical.

Metrics: heart_rate, blood_oxygen, blood_pressure, respiratory_rate, recovery_rate.
blood_pressure takes systolic then diastolic.`,
	Example: `  flowscope classify heart_rate 72
  flowscope classify blood_pressure 130 85`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		metric := vitals.Metric(args[0])

		values := make([]float64, 0, len(args)-1)
		for _, raw := range args[1:] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("value %q is not a number", raw)
			}
			values = append(values, v)
		}

		status, err := vitals.Classify(metric, values...)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", metric, statusColor(status)(string(status)), status.Label())
		return nil
	},
}

func statusColor(s vitals.Status) func(a ...interface{}) string {
	switch s {
	case vitals.StatusHealthy:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case vitals.StatusConcerning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case vitals.StatusCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
	return color.New(color.FgHiBlack).SprintFunc()
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
