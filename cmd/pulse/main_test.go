package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/pulse/ai/mock"
	"github.com/poiesic/pulse/config"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"run", "schedule", "search", "themes", "insights", "reindex"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}

	t.Run("schedule accepts metrics-addr", func(t *testing.T) {
		cmd := findCommand(t, app, "schedule")
		var found bool
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "metrics-addr" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("reindex batch-size has default value of 100", func(t *testing.T) {
		cmd := findCommand(t, app, "reindex")
		var batchFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				batchFlag = f
				break
			}
		}
		require.NotNil(t, batchFlag)
		assert.Equal(t, 100, batchFlag.Value)
	})
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	err := app.Run([]string{"pulse", "--log-level", "loud", "search", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warn", "error"} {
		_, err := parseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLevel("trace")
	assert.Error(t, err)
}

func TestSearchCommand_RequiresQuery(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"pulse", "search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestReindexCommand_Validation(t *testing.T) {
	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"pulse", "reindex", "--batch-size", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size")
}

func TestScheduleCommand_RequiresSpec(t *testing.T) {
	setupEnv(t)
	app := newApp()
	app.Writer = io.Discard
	err := app.Run([]string{"pulse", "schedule"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron spec is required")
}

// setupEnv points the config at a local embedding server, a JSONL source
// file and a temporary database.
func setupEnv(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": mock.DeterministicVector(text, 8)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": "test-embed", "data": data})
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	created := time.Now().Add(-time.Hour).UTC()
	var posts []core.RawPost
	for i, body := range []string{
		"The strap broke after two weeks.",
		"My strap keeps slipping off.",
		"Replacement strap is overpriced.",
		"Strap material gives me a rash.",
	} {
		posts = append(posts, core.RawPost{
			ExternalID: fmt.Sprintf("s%d", i),
			Title:      "Strap trouble",
			Body:       body,
			CreatedAt:  created,
			Subreddit:  "whoop",
			Permalink:  fmt.Sprintf("https://www.reddit.com/r/whoop/comments/s%d/", i),
		})
	}
	postsFile := filepath.Join(dir, "posts.jsonl")
	f, err := os.Create(postsFile)
	require.NoError(t, err)
	require.NoError(t, source.WritePosts(f, posts))
	require.NoError(t, f.Close())

	t.Setenv(config.EnvSourceKind, config.SourceFile)
	t.Setenv(config.EnvSourceFile, postsFile)
	t.Setenv(config.EnvEmbeddingHost, srv.URL)
	t.Setenv(config.EnvEmbeddingModel, "test-embed")
	t.Setenv(config.EnvStoragePath, filepath.Join(dir, "db"))
	t.Setenv(config.EnvProduct, "whoop")
	t.Setenv(config.EnvSubreddit, "whoop")
	t.Setenv(config.EnvTerms, "strap")
}

func runApp(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	require.NoError(t, app.Run(append([]string{"pulse", "--log-level", "error"}, args...)))
	return out.String()
}

func TestCommands_EndToEnd(t *testing.T) {
	setupEnv(t)

	out := runApp(t, "run")
	assert.Contains(t, out, "scraped 4")
	assert.Contains(t, out, "indexed 4")

	out = runApp(t, "search", "--threshold", "-1", "--limit", "2", "strap", "broke")
	assert.Contains(t, out, "SIMILARITY")
	assert.Contains(t, out, "Strap trouble")

	out = runApp(t, "themes", "--timeframe", "all")
	assert.Contains(t, out, "strap")

	out = runApp(t, "insights", "--timeframe", "all")
	assert.Contains(t, out, "strap")

	out = runApp(t, "reindex", "--batch-size", "2", "--report-interval", "1")
	assert.Contains(t, out, "Reindexed 4 posts")
}
