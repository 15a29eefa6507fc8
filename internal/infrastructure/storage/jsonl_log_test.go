package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentFactory/internal/domain"
)

func TestJSONLResultLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log, err := NewJSONLResultLog(filepath.Join(t.TempDir(), "results", "publications.jsonl"))
	require.NoError(t, err)

	empty, err := log.Recent(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, r := range []domain.PublicationResult{
		{ContentID: "a", Platform: "youtube", Success: true},
		{ContentID: "b", Platform: "tiktok", Success: false, Error: "boom"},
		{ContentID: "c", Platform: "youtube", Success: true},
	} {
		require.NoError(t, log.Append(ctx, r))
	}

	all, err := log.Recent(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ContentID)

	yt, err := log.Recent(ctx, []string{"youtube"}, 1)
	require.NoError(t, err)
	require.Len(t, yt, 1)
	assert.Equal(t, "c", yt[0].ContentID)
}
