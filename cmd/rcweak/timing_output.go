package main

import (
	"fmt"
	"io"

	"rcweak/internal/observ"
)

func printTimings(out io.Writer, report observ.Report) {
	if out == nil {
		return
	}
	for _, p := range report.Phases {
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", p.Name, p.DurationMS); err != nil {
			panic(err)
		}
	}
	if _, err := fmt.Fprintf(out, "total %.1f ms\n", report.TotalMS); err != nil {
		panic(err)
	}
}
