package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func contentDirFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"menus/main.md":    "---\ntitle: Main\ncollections:\n  - docs\n---\n",
		"docs/intro.md":    "---\ntitle: Intro\norder: 1\n---\n",
		"docs/setup.md":    "---\ntitle: Setup\nparent: intro\norder: 2\n---\n",
		"posts/hello.md":   "---\ntitle: Hello\nstatus: published\nviews: 10\n---\n",
		"posts/draft.md":   "---\ntitle: Draft\nstatus: draft\nviews: 3\n---\n",
		"posts/popular.md": "---\ntitle: Popular\nstatus: published\nviews: 99\n---\n",
	}
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("CONTENT_DIR", "")
	queryWhere, queryJQ, querySort = nil, nil, nil
	queryLimit, queryOffset, queryRelations = 0, 0, -1
	relationTypes, relatedAll = nil, false
	graphIndirect, graphDepth, graphNodes = false, 0, false
	outputFormat, contentDir, storeBackend = "json", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	root := contentDirFixture(t)

	out, err := run(t, "query", "posts", "--content", root,
		"--where", "status=published", "--sort", "views:desc", "--limit", "1")
	require.NoError(t, err)

	var res struct {
		Items []struct {
			Entry struct {
				ID string `json:"id"`
			} `json:"entry"`
		} `json:"items"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "popular", res.Items[0].Entry.ID)
}

func TestQueryCommand_InvalidCondition(t *testing.T) {
	_, err := run(t, "query", "posts", "--content", contentDirFixture(t), "--where", "=oops")
	assert.Error(t, err)
}

func TestTreeCommand(t *testing.T) {
	root := contentDirFixture(t)

	out, err := run(t, "tree", "docs", "setup", "--content", root)
	require.NoError(t, err)
	var crumbs []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &crumbs))
	require.Len(t, crumbs, 2)
	assert.Equal(t, "intro", crumbs[0].ID)
	assert.Equal(t, "setup", crumbs[1].ID)
}

func TestMenuCommand_YAML(t *testing.T) {
	root := contentDirFixture(t)

	out, err := run(t, "menu", "main", "--content", root, "-o", "yaml")
	require.NoError(t, err)

	var tree []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &tree))
	require.Len(t, tree, 1)
	item := tree[0]["item"].(map[string]any)
	assert.Equal(t, "docs", item["id"])

	_, err = run(t, "menu", "footer", "--content", root)
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	out, err := run(t, "graph", "docs", "posts", "--content", contentDirFixture(t))
	require.NoError(t, err)

	var stats struct {
		TotalEntries  int            `json:"totalEntries"`
		PerCollection map[string]int `json:"perCollection"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 5, stats.TotalEntries)
	assert.Equal(t, 3, stats.PerCollection["posts"])
}
