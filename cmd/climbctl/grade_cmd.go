package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ignite/climblog/internal/grade"
)

func newGradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Detect and convert climbing grades",
	}
	cmd.AddCommand(newGradeDetectCmd(), newGradeConvertCmd())
	return cmd
}

func newGradeDetectCmd() *cobra.Command {
	var boulder string

	cmd := &cobra.Command{
		Use:   "detect <grade>...",
		Short: "Name the grading system of each grade",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hint, err := parseHint(boulder)
			if err != nil {
				return err
			}
			for _, g := range args {
				sys := grade.Detect(g, hint)
				name := string(sys)
				if sys == grade.Unknown {
					name = "unknown"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", g, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&boulder, "boulder", "", "Discipline hint: true for boulders, false for routes")
	return cmd
}

func newGradeConvertCmd() *cobra.Command {
	var from, to, boulder string

	cmd := &cobra.Command{
		Use:   "convert <grade>...",
		Short: "Convert grades to another system",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := grade.ParseSystem(from)
			if err != nil {
				return err
			}
			dst, err := grade.ParseSystem(to)
			if err != nil {
				return err
			}
			if dst == grade.Unknown {
				return errors.New("--to is required")
			}
			hint, err := parseHint(boulder)
			if err != nil {
				return err
			}
			for _, g := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", g, grade.Normalize(g, src, dst, hint))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source system (detected when empty)")
	cmd.Flags().StringVar(&to, "to", "", "Target system: yds, french, v-scale, font (required)")
	cmd.Flags().StringVar(&boulder, "boulder", "", "Discipline hint: true for boulders, false for routes")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parseHint(raw string) (grade.Hint, error) {
	switch raw {
	case "":
		return grade.HintNone, nil
	case "true", "yes", "1":
		return grade.HintBoulder, nil
	case "false", "no", "0":
		return grade.HintRoute, nil
	}
	return grade.HintNone, fmt.Errorf("invalid --boulder %q", raw)
}
