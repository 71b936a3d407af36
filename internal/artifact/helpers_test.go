package artifact

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinhtt95/BAWorkbench-sub000/internal/config"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/logging"
	"github.com/vinhtt95/BAWorkbench-sub000/internal/project"
)

// newTestStore opens a fresh project with an Artifacts directory.
func newTestStore(t *testing.T) (*Store, *project.Project) {
	t.Helper()
	session := project.NewSession(config.NewConfig().Layout)
	p, err := session.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(p.ArtifactsDir, 0o755))
	return NewStore(session, logging.Discard()), p
}

func sampleUseCase() *Artifact {
	return &Artifact{
		ID:   "UC001",
		Name: "Submit request",
		Type: "UC",
		Fields: map[string]any{
			"Description": "Requires @BR001",
			"Trạng thái":  "Draft",
			"Priority":    float64(2),
			"Flow": []any{
				map[string]any{"actor": "User", "action": "Fill form"},
				map[string]any{"actor": "System", "action": "Validate @BR001"},
			},
		},
	}
}
