package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/pipeforge/pipeforged/internal/manifest"
	"github.com/pipeforge/pipeforged/internal/plan"
)

// InspectCmd compiles a manifest's plan and prints every invocation's
// kind, stage name, and resolved identifier, then the final identifier,
// without executing anything. It prints no per-stage metadata.
type InspectCmd struct {
	Manifest string `arg:"" help:"Path to a pipeline manifest JSON file."`
}

func (c *InspectCmd) Run(ctx context.Context) error {
	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding manifest: %w", err)
	}

	p, err := plan.Compile(m.Pipeline)
	if err != nil {
		return fmt.Errorf("compiling plan: %w", err)
	}

	for _, inv := range p.Invocations {
		kind := "stage"
		if inv.IsAssembler {
			kind = "assembler"
		}
		fmt.Printf("%-9s %-32s %s\n", kind, inv.StageName, inv.ID)
	}
	fmt.Println("final:", p.FinalID)
	return nil
}
