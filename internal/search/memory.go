package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Searcher and Indexer used when Meilisearch is not
// configured or unreachable. Matching is case-insensitive substring search,
// good enough to keep the endpoint functional offline.
type Memory struct {
	mu       sync.RWMutex
	reports  map[string]ReportRecord
	sections map[string]SectionRecord
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		reports:  make(map[string]ReportRecord),
		sections: make(map[string]SectionRecord),
	}
}

// Healthy always reports true; the fallback has no external dependency.
func (m *Memory) Healthy() bool { return true }

// IndexReport adds or updates a report record.
func (m *Memory) IndexReport(r ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	return nil
}

// IndexSections adds or updates section records.
func (m *Memory) IndexSections(sections []SectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sections {
		m.sections[s.ID] = s
	}
	return nil
}

// DeleteReport removes a report record.
func (m *Memory) DeleteReport(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

// DeleteSections removes section records.
func (m *Memory) DeleteSections(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sections, id)
	}
	return nil
}

// Search scans the stored records. Results come back reports first, then
// sections, each group ordered by id so pagination is stable.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))

	var matches []Result
	if q.FilterType == "" || q.FilterType == ResultReport {
		for _, r := range sortedReports(m.reports) {
			if needle != "" && !strings.Contains(strings.ToLower(r.Title), needle) {
				continue
			}
			matches = append(matches, Result{
				Type:       ResultReport,
				ID:         r.ID,
				Title:      highlight(r.Title, needle),
				DocumentID: r.ID,
				Status:     r.Status,
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultSection {
		for _, s := range sortedSections(m.sections) {
			if q.FilterDocumentID != "" && s.DocumentID != q.FilterDocumentID {
				continue
			}
			if q.FilterFramework != "" && !containsFold(s.Frameworks, q.FilterFramework) {
				continue
			}
			inTitle := needle != "" && strings.Contains(strings.ToLower(s.Title), needle)
			inText := needle != "" && strings.Contains(strings.ToLower(s.Text), needle)
			if needle != "" && !inTitle && !inText {
				continue
			}
			matches = append(matches, Result{
				Type:       ResultSection,
				ID:         s.ID,
				Title:      highlight(s.Title, needle),
				Snippet:    snippet(s.Text, needle),
				DocumentID: s.DocumentID,
			})
		}
	}

	total := len(matches)

	offset := q.Offset
	if offset > total {
		offset = total
	}
	matches = matches[offset:]

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

func sortedReports(byID map[string]ReportRecord) []ReportRecord {
	out := make([]ReportRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedSections(byID map[string]SectionRecord) []SectionRecord {
	out := make([]SectionRecord, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// highlight wraps the first match in <mark> tags, mirroring the Meilisearch
// highlight format so callers render both backends the same way.
func highlight(text, needle string) string {
	if needle == "" {
		return text
	}
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 {
		return text
	}
	end := idx + len(needle)
	return text[:idx] + "<mark>" + text[idx:end] + "</mark>" + text[end:]
}

const snippetRadius = 80

// snippet extracts a window of text around the first match.
func snippet(text, needle string) string {
	if text == "" {
		return ""
	}
	if needle == "" {
		if len(text) > 2*snippetRadius {
			return text[:2*snippetRadius] + "…"
		}
		return text
	}
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 {
		if len(text) > 2*snippetRadius {
			return text[:2*snippetRadius] + "…"
		}
		return text
	}

	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	// Avoid splitting multibyte runes at the window edges.
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}

	out := highlight(text[start:end], needle)
	if start > 0 {
		out = "…" + out
	}
	if end < len(text) {
		out += "…"
	}
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
