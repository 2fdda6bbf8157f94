package cmd

import (
	"fmt"
	"io"

	"lottoclaim/domain/entities"
)

func formatAmount(rec *entities.ClaimRecord) string {
	return entities.FormatTokenAmount(rec.AmountOwed)
}

// printReport prints every batch outcome and fails unless every round confirmed
func printReport(out io.Writer, report *entities.ClaimReport) error {
	for _, b := range report.Batches {
		line := fmt.Sprintf("batch %d: %d rounds, %s", b.Index+1, len(b.Selections), b.State)
		if b.TxRef != nil {
			line += " tx " + b.TxRef.Hex()
		}
		if b.Reason != "" {
			line += fmt.Sprintf(" (%s)", b.Reason)
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%s, %s claimed\n", report.Summary(), entities.FormatTokenAmount(report.TotalConfirmed))
	if !report.FullySucceeded() {
		return fmt.Errorf("claim run incomplete: %s", report.Summary())
	}
	return nil
}

// finishClaim prints whatever part of the run completed. The claim error wins over an incomplete report.
func finishClaim(out io.Writer, report *entities.ClaimReport, err error) error {
	if report == nil {
		return err
	}
	printErr := printReport(out, report)
	if err != nil {
		return err
	}
	return printErr
}
