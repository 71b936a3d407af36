//go:build ignore

// Package main generates a synthetic project for benchmarking rebuilds.
// Usage: go run scripts/generate-artifacts.go -artifacts 5000 -output testdata/bench
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numArtifacts = flag.Int("artifacts", 1000, "Number of artifacts to generate")
	outputDir    = flag.String("output", "testdata/bench", "Project directory to create")
	maxLinks     = flag.Int("links", 3, "Maximum references per artifact")
	brokenPct    = flag.Int("broken", 1, "Percentage of malformed documents")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	types    = []string{"BR", "UC", "FR", "NFR", "TASK"}
	statuses = []string{"Draft", "In Review", "Approved", "Done"}
	verbs    = []string{"Submit", "Approve", "Reject", "Export", "Import", "Review", "Archive"}
	nouns    = []string{"request", "invoice", "customer", "loan", "report", "contract", "payment"}
)

type document struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   string         `json:"artifactType"`
	Fields map[string]any `json:"fields"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	artifactsDir := filepath.Join(*outputDir, "Artifacts")
	configDir := filepath.Join(*outputDir, ".config")
	for _, dir := range []string{artifactsDir, configDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	meta := fmt.Sprintf(`{"name":"bench","createdAt":%q,"version":"dev"}`, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(configDir, "project.json"), []byte(meta), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ids := make([]string, *numArtifacts)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%05d", types[i%len(types)], i)
	}

	var broken int
	for i, id := range ids {
		path := filepath.Join(artifactsDir, id+".json")

		if rng.Intn(100) < *brokenPct {
			broken++
			if err := os.WriteFile(path, []byte(`{"id": "`+id), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			continue
		}

		refs := make([]string, 0, *maxLinks)
		for range rng.Intn(*maxLinks + 1) {
			refs = append(refs, "@"+ids[rng.Intn(len(ids))])
		}

		doc := document{
			ID:   id,
			Name: verbs[rng.Intn(len(verbs))] + " " + nouns[rng.Intn(len(nouns))],
			Type: types[i%len(types)],
			Fields: map[string]any{
				"Description": "Depends on " + strings.Join(refs, ", "),
				"Trạng thái":  statuses[rng.Intn(len(statuses))],
				"Priority":    rng.Intn(5) + 1,
			},
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d artifacts (%d malformed) in %s\n", len(ids), broken, *outputDir)
	fmt.Printf("Rebuild with: baw --project %s rebuild\n", *outputDir)
}
