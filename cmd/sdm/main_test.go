package main

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyConfig = `
features:
  history: [item]
  user:
    - {name: user_id, vocabulary_size: 5, embedding_dim: 4}
    - {name: short_item, kind: varlen, vocabulary_size: 10, embedding_dim: 8, embedding_name: item_id, maxlen: 3, length_name: short_len}
    - {name: prefer_item, kind: varlen, vocabulary_size: 10, embedding_dim: 8, embedding_name: item_id, maxlen: 4, length_name: prefer_len}
  item:
    - {name: item_id, vocabulary_size: 10, embedding_dim: 8}
model:
  units: 8
  num_head: 2
  workers: 1
  sampler: {kind: uniform, num_sampled: 3}
`

const tinyUsers = `{"user_id": 3, "short_item": [1, 2], "short_len": 2, "prefer_item": [4, 5, 6], "prefer_len": 3, "item_id": 7}
{"user_id": 1, "short_item": [9], "short_len": 1, "prefer_item": [2], "prefer_len": 1, "item_id": 2}
`

func setup(t *testing.T) *options {
	dir := t.TempDir()
	opts := &options{
		config:  filepath.Join(dir, "model.yaml"),
		data:    filepath.Join(dir, "users.jsonl"),
		users:   filepath.Join(dir, "users.txt"),
		items:   filepath.Join(dir, "items.txt"),
		userKey: "user_id",
		logMode: "prod",
	}
	require.NoError(t, os.WriteFile(opts.config, []byte(tinyConfig), 0o644))
	require.NoError(t, os.WriteFile(opts.data, []byte(tinyUsers), 0o644))
	return opts
}

func readHeader(t *testing.T, path string) (string, []string) {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NotEmpty(t, lines)
	return lines[0], lines[1:]
}

func TestExportEmbeddings(t *testing.T) {
	opts := setup(t)
	res, log, err := buildModel(opts)
	require.NoError(t, err)
	require.NoError(t, exportEmbeddings(context.Background(), res, opts, log))

	header, rows := readHeader(t, opts.users)
	assert.Equal(t, "2 8", header)
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "3 "))
	assert.True(t, strings.HasPrefix(rows[1], "1 "))
	assert.Len(t, strings.Fields(rows[0]), 9)

	header, rows = readHeader(t, opts.items)
	assert.Equal(t, "10 8", header)
	assert.Len(t, rows, 10)
}

func TestExportNeedsTargets(t *testing.T) {
	opts := setup(t)
	res, log, err := buildModel(opts)
	require.NoError(t, err)

	opts.users, opts.items = "", ""
	assert.Error(t, exportEmbeddings(context.Background(), res, opts, log))

	opts.users, opts.userKey = filepath.Join(t.TempDir(), "u.txt"), "item_id"
	assert.Error(t, exportEmbeddings(context.Background(), res, opts, log))
}
