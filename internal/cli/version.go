package cli

import (
	"context"
	"fmt"

	"github.com/pipeforge/pipeforged/internal/buildinfo"
)

// VersionCmd prints the daemon's build version banner.
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Println(buildinfo.VersionString())
	return nil
}
