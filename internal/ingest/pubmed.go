// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/metrics"
)

// PubMedFetcher pulls article abstracts from the NCBI eutils API,
// one keyword search at a time.
type PubMedFetcher struct {
	client  *Client
	proc    *Processor
	baseURL string
	log     zerolog.Logger
}

// NewPubMedFetcher creates a fetcher against the given eutils base
// URL (e.g. "https://eutils.ncbi.nlm.nih.gov/entrez/eutils").
func NewPubMedFetcher(client *Client, proc *Processor, baseURL string) *PubMedFetcher {
	return &PubMedFetcher{
		client:  client,
		proc:    proc,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logging.With().Str("component", "pubmed").Logger(),
	}
}

type eSearchResult struct {
	IDs []string `xml:"IdList>Id"`
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID    string        `xml:"MedlineCitation>PMID"`
	Article pubmedDetails `xml:"MedlineCitation>Article"`
	Mesh    []string      `xml:"MedlineCitation>MeshHeadingList>MeshHeading>DescriptorName"`
}

type pubmedDetails struct {
	Title    string         `xml:"ArticleTitle"`
	Abstract []string       `xml:"Abstract>AbstractText"`
	Journal  string         `xml:"Journal>Title"`
	PubDate  pubmedDate     `xml:"Journal>JournalIssue>PubDate"`
	Authors  []pubmedAuthor `xml:"AuthorList>Author"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// Fetch searches PubMed for the keyword and ingests up to max
// articles, newest first. Individual unparseable articles are logged
// and skipped; only transport-level failures abort the run. Returns
// the number of articles ingested.
func (f *PubMedFetcher) Fetch(ctx context.Context, keyword string, max int) (int, error) {
	searchURL := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmax=%d&sort=date",
		f.baseURL, url.QueryEscape(keyword), max)
	body, err := f.client.Get(ctx, searchURL)
	if err != nil {
		return 0, fmt.Errorf("pubmed search %q: %w", keyword, err)
	}

	var search eSearchResult
	if err := xml.Unmarshal(body, &search); err != nil {
		return 0, fmt.Errorf("decode pubmed search result: %w", err)
	}
	if len(search.IDs) == 0 {
		f.log.Info().Str("keyword", keyword).Msg("no pubmed results")
		return 0, nil
	}

	fetchURL := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&retmode=xml",
		f.baseURL, strings.Join(search.IDs, ","))
	body, err = f.client.Get(ctx, fetchURL)
	if err != nil {
		return 0, fmt.Errorf("pubmed fetch %q: %w", keyword, err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return 0, fmt.Errorf("decode pubmed articles: %w", err)
	}

	ingested := 0
	for _, article := range set.Articles {
		raw := RawItem{
			ID:          article.PMID,
			Title:       article.Article.Title,
			Description: strings.Join(article.Article.Abstract, " "),
			Extra:       strings.Join(article.Mesh, " "),
			Publisher:   article.Article.Journal,
			Authors:     joinPubMedAuthors(article.Article.Authors),
			PubDate:     article.Article.PubDate.time(),
			Keyword:     keyword,
			URL:         "https://pubmed.ncbi.nlm.nih.gov/" + article.PMID + "/",
		}
		if err := f.proc.ProcessItem(ctx, raw); err != nil {
			f.log.Warn().Err(err).Str("pmid", article.PMID).Msg("skipping pubmed article")
			continue
		}
		metrics.ItemsIngested.WithLabelValues("pubmed").Inc()
		ingested++
	}

	f.log.Info().
		Str("keyword", keyword).
		Int("found", len(set.Articles)).
		Int("ingested", ingested).
		Msg("pubmed fetch complete")
	return ingested, nil
}

func joinPubMedAuthors(authors []pubmedAuthor) string {
	parts := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.CollectiveName != "":
			parts = append(parts, a.CollectiveName)
		case a.LastName != "" && a.Initials != "":
			parts = append(parts, a.LastName+" "+a.Initials)
		case a.LastName != "":
			parts = append(parts, a.LastName)
		}
	}
	return strings.Join(parts, ", ")
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// time converts a PubMed publication date. Month can be numeric or a
// three-letter name; missing parts default to the earliest value.
func (d pubmedDate) time() time.Time {
	year, err := strconv.Atoi(d.Year)
	if err != nil {
		return time.Time{}
	}

	month := time.January
	if m, err := strconv.Atoi(d.Month); err == nil && m >= 1 && m <= 12 {
		month = time.Month(m)
	} else if m, ok := monthNames[strings.ToLower(d.Month)]; ok {
		month = m
	}

	day := 1
	if v, err := strconv.Atoi(d.Day); err == nil && v >= 1 && v <= 31 {
		day = v
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
