package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Document is one ingested knowledge-base entry, stored as markdown.
type Document struct {
	Title    string
	Source   string
	Markdown string
}

// KnowledgeBase holds ingested travel guides and destination articles and
// serves keyword search over them.
type KnowledgeBase struct {
	mu        sync.RWMutex
	docs      []Document
	client    *http.Client
	converter *md.Converter
}

// NewKnowledgeBase creates an empty knowledge base. A nil client gets a
// default with a 30s timeout.
func NewKnowledgeBase(client *http.Client) *KnowledgeBase {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &KnowledgeBase{
		client:    client,
		converter: md.NewConverter("", true, nil),
	}
}

// Ingest fetches a URL, extracts the readable article, and stores it as
// markdown.
func (kb *KnowledgeBase) Ingest(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := kb.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	// Normalize legacy encodings before extraction.
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return fmt.Errorf("extract article from %s: %w", rawURL, err)
	}

	markdown, err := kb.converter.ConvertString(article.Content)
	if err != nil {
		return fmt.Errorf("convert %s to markdown: %w", rawURL, err)
	}

	kb.AddDocument(Document{
		Title:    article.Title,
		Source:   rawURL,
		Markdown: markdown,
	})
	return nil
}

// AddDocument stores a pre-built document. Used for seeding and tests.
func (kb *KnowledgeBase) AddDocument(doc Document) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.docs = append(kb.docs, doc)
}

// Search scores documents by keyword overlap with the query and returns the
// best matches, at most limit.
func (kb *KnowledgeBase) Search(query string, limit int) []Document {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	type scored struct {
		doc   Document
		score int
	}
	var results []scored
	for _, doc := range kb.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Markdown)
		score := 0
		for _, term := range terms {
			score += strings.Count(haystack, term)
			// Title hits weigh extra.
			if strings.Contains(strings.ToLower(doc.Title), term) {
				score += 5
			}
		}
		if score > 0 {
			results = append(results, scored{doc, score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	docs := make([]Document, len(results))
	for i, r := range results {
		docs[i] = r.doc
	}
	return docs
}

// KnowledgeSearch exposes the knowledge base as a tool.
type KnowledgeSearch struct {
	kb *KnowledgeBase
}

// NewKnowledgeSearch creates the search_knowledge tool.
func NewKnowledgeSearch(kb *KnowledgeBase) *KnowledgeSearch {
	return &KnowledgeSearch{kb: kb}
}

func (k *KnowledgeSearch) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        "search_knowledge",
		Description: "Search ingested travel guides and destination articles.",
		Args: map[string]string{
			"query": "string, keywords to search for",
		},
	}
}

// Execute returns matching excerpts with their sources so synthesis can
// cite them.
func (k *KnowledgeSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	docs := k.kb.Search(query, 3)
	if len(docs) == 0 {
		return fmt.Sprintf("No knowledge base entries matched %q", query), nil
	}

	var b strings.Builder
	for _, doc := range docs {
		excerpt := doc.Markdown
		if len(excerpt) > 2000 {
			excerpt = excerpt[:2000] + "…"
		}
		fmt.Fprintf(&b, "## %s (source: %s)\n%s\n\n", doc.Title, doc.Source, excerpt)
	}
	return b.String(), nil
}
