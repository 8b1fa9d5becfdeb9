// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/models"
)

type fakeStore struct {
	items []*models.Item
}

func (f *fakeStore) UpsertItem(_ context.Context, item *models.Item) error {
	f.items = append(f.items, item)
	return nil
}

func TestProcessItemNormalizes(t *testing.T) {
	store := &fakeStore{}
	proc := NewProcessor(store)

	raw := RawItem{
		ID:          "pm1",
		Title:       "  Brexit   and\nUK  Science ",
		Description: "Thérèse studies   funding effects.",
		Extra:       "policy",
		Publisher:   "J Policy",
		Authors:     "Doe J",
		PubDate:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Keyword:     "brexit",
		URL:         "https://example.org/pm1",
	}
	if err := proc.ProcessItem(context.Background(), raw); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}
	if len(store.items) != 1 {
		t.Fatalf("stored %d items, want 1", len(store.items))
	}

	got := store.items[0]
	if got.Title != "Brexit and UK Science" {
		t.Errorf("Title = %q", got.Title)
	}
	if !strings.HasPrefix(got.Text, " ") || !strings.HasSuffix(got.Text, " ") {
		t.Errorf("Text %q not padded with spaces", got.Text)
	}
	if !strings.Contains(got.Text, " therese ") {
		t.Errorf("Text %q missing normalized token therese", got.Text)
	}
	if !strings.Contains(got.Text, " policy ") {
		t.Errorf("Text %q missing extra text token", got.Text)
	}
	if got.Keywords != "brexit" {
		t.Errorf("Keywords = %q", got.Keywords)
	}
}

func TestProcessItemRejectsIncomplete(t *testing.T) {
	proc := NewProcessor(&fakeStore{})

	if err := proc.ProcessItem(context.Background(), RawItem{Title: "no id"}); err == nil {
		t.Error("ProcessItem(no id) expected an error")
	}
	if err := proc.ProcessItem(context.Background(), RawItem{ID: "x"}); err == nil {
		t.Error("ProcessItem(no title) expected an error")
	}
}

const testESearchXML = `<?xml version="1.0"?>
<eSearchResult>
  <Count>2</Count>
  <IdList>
    <Id>111</Id>
    <Id>222</Id>
  </IdList>
</eSearchResult>`

const testEFetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>111</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate><Year>2025</Year><Month>Apr</Month><Day>3</Day></PubDate>
          </JournalIssue>
          <Title>J Good Papers</Title>
        </Journal>
        <ArticleTitle>A fine article</ArticleTitle>
        <Abstract>
          <AbstractText>Background text.</AbstractText>
          <AbstractText>Conclusion text.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Doe</LastName><Initials>J</Initials></Author>
          <Author><CollectiveName>Some Consortium</CollectiveName></Author>
        </AuthorList>
      </Article>
      <MeshHeadingList>
        <MeshHeading><DescriptorName>Policy</DescriptorName></MeshHeading>
      </MeshHeadingList>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>222</PMID>
      <Article>
        <Journal><Title>J Broken</Title></Journal>
        <ArticleTitle></ArticleTitle>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/esearch.fcgi"):
			_, _ = w.Write([]byte(testESearchXML))
		case strings.HasPrefix(r.URL.Path, "/efetch.fcgi"):
			if got := r.URL.Query().Get("id"); got != "111,222" {
				t.Errorf("efetch id = %q, want 111,222", got)
			}
			_, _ = w.Write([]byte(testEFetchXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := &fakeStore{}
	f := NewPubMedFetcher(NewClient(1000), NewProcessor(store), srv.URL)

	n, err := f.Fetch(context.Background(), "brexit", 10)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	// The titleless article is skipped, not fatal.
	if n != 1 {
		t.Fatalf("Fetch() = %d, want 1", n)
	}

	got := store.items[0]
	if got.ID != "111" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.Description != "Background text. Conclusion text." {
		t.Errorf("Description = %q", got.Description)
	}
	if got.Authors != "Doe J, Some Consortium" {
		t.Errorf("Authors = %q", got.Authors)
	}
	if got.Publisher != "J Good Papers" {
		t.Errorf("Publisher = %q", got.Publisher)
	}
	want := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)
	if !got.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want %v", got.PubDate, want)
	}
	if got.URL != "https://pubmed.ncbi.nlm.nih.gov/111/" {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestPubMedFetchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<eSearchResult><IdList></IdList></eSearchResult>`))
	}))
	defer srv.Close()

	f := NewPubMedFetcher(NewClient(1000), NewProcessor(&fakeStore{}), srv.URL)
	n, err := f.Fetch(context.Background(), "nothing", 10)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Fetch() = %d, want 0", n)
	}
}

func TestPubMedFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewPubMedFetcher(NewClient(1000), NewProcessor(&fakeStore{}), srv.URL)
	if _, err := f.Fetch(context.Background(), "brexit", 10); err == nil {
		t.Error("Fetch() expected an error for upstream failure")
	}
}

const testAtomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query Results</title>
  <id>http://arxiv.org/api/x</id>
  <updated>2025-05-02T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2403.01234v2</id>
    <updated>2025-05-02T00:00:00Z</updated>
    <published>2025-05-01T12:00:00Z</published>
    <title>Neural networks for weather</title>
    <summary>We study forecasting.</summary>
    <author><name>A. Author</name></author>
    <author><name>B. Author</name></author>
    <link href="http://arxiv.org/abs/2403.01234v2" rel="alternate" type="text/html"/>
    <category term="cs.LG"/>
  </entry>
</feed>`

func TestArxivFetch(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		if r.URL.Query().Get("start") == "0" {
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(testAtomFeed))
			return
		}
		// Later pages are empty; the fetcher must stop paginating.
		_, _ = w.Write([]byte(`<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title><id>x</id><updated>2025-05-02T00:00:00Z</updated></feed>`))
	}))
	defer srv.Close()

	store := &fakeStore{}
	f := NewArxivFetcher(NewClient(1000), NewProcessor(store), config.IngestConfig{
		ArxivBaseURL:    srv.URL,
		ArxivQuery:      "cat:cs.LG",
		ArxivMaxResults: 10,
		ArxivPageSize:   5,
	})

	n, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Fetch() = %d, want 1", n)
	}
	if pages != 2 {
		t.Errorf("requested %d pages, want 2 (stop on empty page)", pages)
	}

	got := store.items[0]
	// Version suffix is stripped so resubmissions update one item.
	if got.ID != "2403.01234" {
		t.Errorf("ID = %q, want 2403.01234", got.ID)
	}
	if got.Authors != "A. Author, B. Author" {
		t.Errorf("Authors = %q", got.Authors)
	}
	if got.Publisher != "arXiv" {
		t.Errorf("Publisher = %q", got.Publisher)
	}
	if got.Keywords != "cat:cs.LG" {
		t.Errorf("Keywords = %q", got.Keywords)
	}
	want := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if !got.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want %v", got.PubDate, want)
	}
}

func TestPubMedDateParsing(t *testing.T) {
	tests := []struct {
		name string
		date pubmedDate
		want time.Time
	}{
		{"full numeric", pubmedDate{Year: "2025", Month: "4", Day: "3"}, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)},
		{"month name", pubmedDate{Year: "2025", Month: "Sep", Day: "10"}, time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)},
		{"year only", pubmedDate{Year: "2024"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"no year", pubmedDate{Month: "Jan"}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.date.time(); !got.Equal(tt.want) {
				t.Errorf("time() = %v, want %v", got, tt.want)
			}
		})
	}
}
