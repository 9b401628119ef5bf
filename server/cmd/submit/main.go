// Command submit sends one metrics snapshot to a repowatch server over gRPC
// and prints the alerts it created or changed.
//
//	submit -endpoint localhost:50051 -repo org/repo -file snapshot.yaml
//
// The snapshot file may be YAML or JSON; "-" reads stdin.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/receiver"
)

func main() {
	endpoint := flag.String("endpoint", "localhost:50051", "server gRPC address")
	repo := flag.String("repo", "", "repository the snapshot belongs to (owner/name)")
	file := flag.String("file", "-", "snapshot file (YAML or JSON), - for stdin")
	header := flag.String("header", "x-api-key", "metadata key carrying the API key")
	keyEnv := flag.String("key-env", "REPOWATCH_API_KEY", "environment variable holding the API key")
	attempts := flag.Int("attempts", 3, "delivery attempts for transient failures")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(*endpoint, *repo, *file, *header, os.Getenv(*keyEnv), *attempts); err != nil {
		slog.Error("submit failed", "err", err)
		os.Exit(1)
	}
}

func run(endpoint, repo, file, header, key string, attempts int) error {
	if repo == "" {
		return fmt.Errorf("-repo is required")
	}
	snap, err := readSnapshot(file)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := receiver.Dial(ctx, endpoint, header, key)
	if err != nil {
		return err
	}
	defer client.Close()

	got, err := client.SubmitRetry(ctx, repo, snap, attempts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(got)
}

func readSnapshot(file string) (*types.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}
