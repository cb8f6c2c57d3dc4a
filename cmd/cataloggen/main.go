// Package main generates a link catalog: it reads a list of URLs, fetches
// each page, and asks the AI provider for a one-sentence description. The
// output JSON is what the server loads at startup as a link catalog.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexvand/supportcrew/internal/agent"
	"github.com/alexvand/supportcrew/internal/config"
	"github.com/alexvand/supportcrew/internal/fetch"
	"github.com/alexvand/supportcrew/pkg/models"
)

const (
	maxPageChars = 500
	crawlDelay   = 2 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	input := flag.String("in", "urls.txt", "file with one URL per line")
	output := flag.String("out", "links_with_descriptions.json", "output catalog file")
	flag.Parse()

	if err := run(*input, *output); err != nil {
		slog.Error("cataloggen failed", "error", err)
		os.Exit(1)
	}
}

func run(input, output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := agent.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}

	urls, err := readURLs(input)
	if err != nil {
		return fmt.Errorf("read urls: %w", err)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no urls found in %s", input)
	}
	slog.Info("urls loaded", "count", len(urls), "file", input)

	crawler := fetch.NewCrawler(provider)
	ctx := context.Background()

	catalog := make([]models.Link, 0, len(urls))
	for i, u := range urls {
		if i > 0 {
			time.Sleep(crawlDelay)
		}

		entry := models.Link{URL: u}
		text, err := crawler.PageText(ctx, u)
		if err != nil {
			// A dead page still gets a catalog entry, just without a description
			slog.Warn("page fetch failed", "url", u, "error", err)
			catalog = append(catalog, entry)
			continue
		}
		if len(text) > maxPageChars {
			text = text[:maxPageChars]
		}

		desc, err := provider.Complete(ctx, models.CompletionRequest{
			System: "Summarize the following content in one sentence:",
			User:   text,
		})
		if err != nil {
			slog.Warn("description generation failed", "url", u, "error", err)
			catalog = append(catalog, entry)
			continue
		}

		entry.Description = strings.TrimSpace(desc)
		catalog = append(catalog, entry)
		slog.Info("described", "url", u)
	}

	data, err := json.MarshalIndent(catalog, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	slog.Info("catalog written", "file", output, "entries", len(catalog))
	return nil
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
