// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/metrics"
)

// ArxivFetcher pulls article metadata from the arXiv Atom API,
// paginating until the configured cap or an empty page.
type ArxivFetcher struct {
	client *Client
	proc   *Processor
	cfg    config.IngestConfig
	parser *gofeed.Parser
	log    zerolog.Logger
}

// NewArxivFetcher creates a fetcher for the configured category
// query.
func NewArxivFetcher(client *Client, proc *Processor, cfg config.IngestConfig) *ArxivFetcher {
	return &ArxivFetcher{
		client: client,
		proc:   proc,
		cfg:    cfg,
		parser: gofeed.NewParser(),
		log:    logging.With().Str("component", "arxiv").Logger(),
	}
}

// Fetch ingests up to ArxivMaxResults articles for the configured
// query, newest submissions first. Returns the number ingested.
func (f *ArxivFetcher) Fetch(ctx context.Context) (int, error) {
	pageSize := f.cfg.ArxivPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	max := f.cfg.ArxivMaxResults
	if max <= 0 {
		max = pageSize
	}

	ingested := 0
	for start := 0; start < max; start += pageSize {
		n := pageSize
		if remaining := max - start; remaining < n {
			n = remaining
		}
		pageURL := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
			strings.TrimRight(f.cfg.ArxivBaseURL, "/"), url.QueryEscape(f.cfg.ArxivQuery), start, n)

		body, err := f.client.Get(ctx, pageURL)
		if err != nil {
			return ingested, fmt.Errorf("arxiv page at %d: %w", start, err)
		}
		feed, err := f.parser.Parse(bytes.NewReader(body))
		if err != nil {
			return ingested, fmt.Errorf("parse arxiv feed at %d: %w", start, err)
		}
		if len(feed.Items) == 0 {
			break
		}

		for _, entry := range feed.Items {
			raw, err := arxivRawItem(entry, f.cfg.ArxivQuery)
			if err != nil {
				f.log.Warn().Err(err).Str("entry", entry.GUID).Msg("skipping arxiv entry")
				continue
			}
			if err := f.proc.ProcessItem(ctx, raw); err != nil {
				f.log.Warn().Err(err).Str("arxiv_id", raw.ID).Msg("skipping arxiv entry")
				continue
			}
			metrics.ItemsIngested.WithLabelValues("arxiv").Inc()
			ingested++
		}
	}

	f.log.Info().
		Str("query", f.cfg.ArxivQuery).
		Int("ingested", ingested).
		Msg("arxiv fetch complete")
	return ingested, nil
}

// arxivRawItem maps one Atom entry to a RawItem. The arXiv id is the
// tail of the entry id URL, version suffix stripped so resubmissions
// update the same item.
func arxivRawItem(entry *gofeed.Item, keyword string) (RawItem, error) {
	id := entry.GUID
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	if i := strings.LastIndex(id, "v"); i > 0 && !strings.Contains(id[i:], "/") {
		if allDigits(id[i+1:]) {
			id = id[:i]
		}
	}
	if id == "" {
		return RawItem{}, fmt.Errorf("entry without id: %q", entry.GUID)
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if a != nil && a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	var pubDate time.Time
	if entry.PublishedParsed != nil {
		pubDate = entry.PublishedParsed.UTC()
	}

	return RawItem{
		ID:          id,
		Title:       entry.Title,
		Description: entry.Description,
		Extra:       strings.Join(entry.Categories, " "),
		Publisher:   "arXiv",
		Authors:     strings.Join(authors, ", "),
		PubDate:     pubDate,
		Keyword:     keyword,
		URL:         entry.Link,
	}, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
