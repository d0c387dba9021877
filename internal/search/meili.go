package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxTasks    = "taskdeck_tasks"
	idxComments = "taskdeck_comments"

	healthInterval = 10 * time.Second
	defaultLimit   = 20
)

// indexSpec describes one Meilisearch index and how its hits map back onto
// Result values.
type indexSpec struct {
	uid        string
	rtype      ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{uid: idxTasks, rtype: ResultTask, filterable: []string{"createdBy"}, searchable: []string{"title"}},
	{uid: idxComments, rtype: ResultComment, filterable: []string{"taskId", "author"}, searchable: []string{"body", "author"}},
}

// Meili implements Searcher and Indexer against a Meilisearch instance. It
// tolerates the instance being down: a background monitor flips healthy
// back on and re-applies index settings when Meilisearch returns.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili connects and configures the indexes. An unreachable instance is
// not an error; the monitor picks it up later and the caller falls back to
// Postgres full-text search meanwhile.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
	} else {
		m.healthy.Store(true)
		m.applyIndexSettings()
	}

	go m.monitor()
	return m
}

func (m *Meili) applyIndexSettings() {
	for _, spec := range indexSpecs {
		// CreateIndex fails when the index exists; that is the steady state.
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: spec.uid, PrimaryKey: "id"}); err != nil {
			log.Printf("search: create index %s: %v", spec.uid, err)
		}

		index := m.client.Index(spec.uid)
		filterable := make([]interface{}, len(spec.filterable))
		for i, attr := range spec.filterable {
			filterable[i] = attr
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: filterable attributes on %s: %v", spec.uid, err)
		}
		searchable := spec.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Printf("search: searchable attributes on %s: %v", spec.uid, err)
		}
	}
}

func (m *Meili) monitor() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			recovered := err == nil && !m.healthy.Load()
			m.healthy.Store(err == nil)
			if recovered {
				log.Println("search: meilisearch recovered")
				m.applyIndexSettings()
			}
		}
	}
}

// Healthy reports whether Meilisearch answered the last health probe.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Close stops the health monitor. The underlying client holds no
// connections to release.
func (m *Meili) Close() {
	close(m.done)
}

// Search fans the query out to every index the filters allow and merges
// the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = defaultLimit
	}

	var queries []*meili.SearchRequest
	for _, spec := range indexSpecs {
		if q.FilterType != "" && q.FilterType != spec.rtype {
			continue
		}
		// A task-scoped search only makes sense against comments.
		if q.FilterTaskID != 0 && spec.rtype == ResultTask {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              spec.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}
		if q.FilterTaskID != 0 && spec.rtype == ResultComment {
			sr.Filter = []string{fmt.Sprintf("taskId = %d", q.FilterTaskID)}
		}
		queries = append(queries, sr)
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtype := resultTypeForIndex(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, resultFromHit(hit, rtype))
		}
	}
	return results, total, nil
}

func resultTypeForIndex(uid string) ResultType {
	for _, spec := range indexSpecs {
		if spec.uid == uid {
			return spec.rtype
		}
	}
	return ""
}

func resultFromHit(hit meili.Hit, rtype ResultType) Result {
	id := hitInt64(hit, "id")
	r := Result{Type: rtype, ID: strconv.FormatInt(id, 10)}

	switch rtype {
	case ResultTask:
		r.TaskID = id
		r.Title = hitHighlighted(hit, "title")
	case ResultComment:
		r.TaskID = hitInt64(hit, "taskId")
		r.Title = hitHighlighted(hit, "author")
		r.Snippet = hitHighlighted(hit, "body")
	}
	return r
}

// hitHighlighted prefers the <mark>-annotated value from _formatted and
// falls back to the raw field.
func hitHighlighted(hit meili.Hit, key string) string {
	if raw, ok := hit["_formatted"]; ok {
		var formatted map[string]string
		if json.Unmarshal(raw, &formatted) == nil {
			if v := strings.TrimSpace(formatted[key]); v != "" {
				return v
			}
		}
	}
	return hitString(hit, key)
}

func hitString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func hitInt64(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	// Numeric fields can round-trip as floats.
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int64(f)
	}
	return 0
}

// IndexTask adds or updates a task document.
func (m *Meili) IndexTask(t TaskRecord) error {
	return m.addDocuments(idxTasks, []TaskRecord{t})
}

// IndexTasks bulk-indexes tasks.
func (m *Meili) IndexTasks(tasks []TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}
	return m.addDocuments(idxTasks, tasks)
}

// IndexComment adds or updates a comment document.
func (m *Meili) IndexComment(c CommentRecord) error {
	return m.addDocuments(idxComments, []CommentRecord{c})
}

// IndexComments bulk-indexes comments.
func (m *Meili) IndexComments(comments []CommentRecord) error {
	if len(comments) == 0 {
		return nil
	}
	return m.addDocuments(idxComments, comments)
}

// DeleteComment removes a comment document.
func (m *Meili) DeleteComment(id int64) error {
	_, err := m.client.Index(idxComments).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}

func (m *Meili) addDocuments(uid string, docs any) error {
	_, err := m.client.Index(uid).AddDocuments(docs, nil)
	return err
}
