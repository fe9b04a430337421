// Command oradblint reports oracledb client calls that discard their results
// without an explicit row or return type.
//
//	oradblint ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/tomyedwab/oracledb/diagnostics/analyzer"
)

func main() {
	singlechecker.Main(analyzer.Analyzer)
}
