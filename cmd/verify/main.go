package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openct/openct-cms/internal/cms"
	"github.com/openct/openct-cms/internal/config"
)

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	fmt.Println("🔍 OpenCT - Institution Registry Verification Tool")
	fmt.Println("==================================================")

	userFile := os.Getenv(config.EnvInstitutionsFile)
	if len(os.Args) > 1 {
		userFile = os.Args[1]
	}

	results := verifyRegistry(userFile)

	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	if failed := printResults(os.Stdout, results); failed > 0 {
		os.Exit(1)
	}
}

// verifyRegistry loads the built-in registry merged with userFile and
// checks every entry.
func verifyRegistry(userFile string) []verifyResult {
	results := []verifyResult{}

	source := "built-in registry"
	if userFile != "" {
		source = "built-in registry + " + userFile
	}

	reg, err := cms.LoadRegistry(userFile)
	if err != nil {
		return append(results, verifyResult{
			name:    "Registry Loads",
			passed:  false,
			message: err.Error(),
		})
	}
	results = append(results, verifyResult{
		name:    "Registry Loads",
		passed:  true,
		message: fmt.Sprintf("%s: %d institutions", source, reg.Len()),
	})

	results = append(results, verifyResult{
		name:    "Registry Not Empty",
		passed:  reg.Len() > 0,
		message: fmt.Sprintf("Expected at least 1 institution, got %d", reg.Len()),
	})

	for _, inst := range reg.List() {
		results = append(results, verifyInstitution(inst))
	}
	return results
}

// verifyInstitution checks one entry's URLs, login fields, table schemas
// and pages.
func verifyInstitution(inst cms.Institution) verifyResult {
	name := "Institution " + inst.Name
	if err := inst.Validate(); err != nil {
		return verifyResult{
			name:    name,
			passed:  false,
			message: strings.ReplaceAll(err.Error(), "\n", "; "),
		}
	}

	mode := "static login URL"
	if inst.Config.DynamicLoginURL {
		mode = "dynamic login URL"
	}
	return verifyResult{
		name:    name,
		passed:  true,
		message: fmt.Sprintf("%s (%s)", inst.Config.LoginURL(), mode),
	}
}

// printResults writes one line per result and the summary, and returns the
// number of failures.
func printResults(w io.Writer, results []verifyResult) int {
	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", status, result.name, result.message)
	}

	_, _ = fmt.Fprintf(w, "\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)
	return failedCount
}
