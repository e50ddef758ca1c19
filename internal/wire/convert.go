package wire

import (
	"encoding/json"
	"strconv"
	"time"

	"greenprint/api/internal/document"
	"greenprint/api/internal/util"
)

// Wire timestamps are RFC 3339; some server builds emit them without the
// zone suffix, so parsing tolerates both forms.
const bareTimeLayout = "2006-01-02T15:04:05"

// ToDocument converts a persisted server document into the internal tree.
// The conversion is total: blocks whose type or shape this core does not
// recognize become unknown payloads carrying the raw wire fields, so nothing
// the author saved is dropped.
func ToDocument(sd ServerDocument) document.Document {
	doc := document.Document{
		ID:    strconv.FormatInt(sd.ID, 10),
		Title: sd.Title,
		Metadata: document.Metadata{
			Version:    1,
			RevisionID: util.NewID("rev"),
			Status:     document.StatusDraft,
			AuthorID:   formatUserID(sd.UserID),
			Language:   "en",
			CreatedAt:  parseTime(sd.CreatedAt),
			UpdatedAt:  parseTime(sd.UpdatedAt),
		},
		PageSetup: document.DefaultPageSetup(),
		Sections:  make([]document.Section, 0, len(sd.Sections)),
	}
	for _, ss := range sd.Sections {
		doc.Sections = append(doc.Sections, toSection(ss))
	}
	return doc
}

// ToServer converts the internal tree back into the persisted schema. For a
// document that came in through ToDocument, every field both schemas share
// comes back out unchanged.
func ToServer(d document.Document) ServerDocument {
	sd := ServerDocument{
		ID:        parseWireID(d.ID),
		UserID:    parseWireID(d.Metadata.AuthorID),
		Title:     d.Title,
		CreatedAt: formatTime(d.Metadata.CreatedAt),
		UpdatedAt: formatTime(d.Metadata.UpdatedAt),
		Sections:  make([]ServerSection, 0, len(d.Sections)),
	}
	for _, section := range d.Sections {
		sd.Sections = append(sd.Sections, toServerSection(section))
	}
	return sd
}

func toSection(ss ServerSection) document.Section {
	section := document.Section{
		ID:          ss.ID,
		Title:       ss.Title,
		Description: ss.Description,
		Blocks:      make([]document.Block, 0, len(ss.Blocks)),
	}
	for _, sb := range ss.Blocks {
		section.Blocks = append(section.Blocks, toBlock(sb))
	}
	if len(ss.GRIReference) > 0 {
		section.StandardRefs = make([]document.StandardRef, 0, len(ss.GRIReference))
		for _, ref := range ss.GRIReference {
			section.StandardRefs = append(section.StandardRefs, document.StandardRef{
				Framework: ref.Framework,
				Codes:     append([]string(nil), ref.Code...),
			})
		}
	}
	if len(ss.Metadata) > 0 {
		section.Metadata = copyAttrs(ss.Metadata)
	}
	return section
}

func toServerSection(section document.Section) ServerSection {
	ss := ServerSection{
		ID:          section.ID,
		Title:       section.Title,
		Description: section.Description,
		Blocks:      make([]ServerBlock, 0, len(section.Blocks)),
	}
	for _, block := range section.Blocks {
		ss.Blocks = append(ss.Blocks, toServerBlock(block))
	}
	if len(section.StandardRefs) > 0 {
		ss.GRIReference = make([]ServerGRIRef, 0, len(section.StandardRefs))
		for _, ref := range section.StandardRefs {
			ss.GRIReference = append(ss.GRIReference, ServerGRIRef{
				Framework: ref.Framework,
				Code:      append([]string(nil), ref.Codes...),
			})
		}
	}
	if len(section.Metadata) > 0 {
		ss.Metadata = copyAttrs(section.Metadata)
	}
	return ss
}

// ToBlock converts a single wire block, used when clients submit blocks
// directly rather than whole documents.
func ToBlock(sb ServerBlock) document.Block {
	return toBlock(sb)
}

// ToServerBlock converts a single typed block back to the wire shape.
func ToServerBlock(block document.Block) ServerBlock {
	return toServerBlock(block)
}

func toBlock(sb ServerBlock) document.Block {
	block := document.Block{ID: sb.ID, Attributes: copyAttrs(sb.Attributes)}

	switch sb.BlockType {
	case "paragraph":
		if nodes, ok := parseInlines(sb.Content); ok {
			block.Payload = document.TextPayload{Role: document.RoleParagraph, Content: nodes}
			return block
		}
	case "quote":
		if nodes, ok := parseInlines(sb.Content); ok {
			block.Payload = document.TextPayload{Role: document.RoleQuote, Content: nodes}
			return block
		}
	case "heading":
		if nodes, ok := parseInlines(sb.Content); ok {
			level := intAttr(block.Attributes, "level", 1)
			delete(block.Attributes, "level")
			block.Attributes = dropEmpty(block.Attributes)
			block.Payload = document.HeadingPayload{Level: level, Content: nodes}
			return block
		}
	case "list":
		if items, ok := parseListItems(sb.Children); ok {
			payload := document.ListPayload{
				Ordered: stringAttr(block.Attributes, "listType") == "ordered",
				Start:   intAttr(block.Attributes, "startNumber", 0),
				Items:   items,
			}
			delete(block.Attributes, "listType")
			delete(block.Attributes, "startNumber")
			block.Attributes = dropEmpty(block.Attributes)
			block.Payload = payload
			return block
		}
	case "image":
		var data serverImageData
		if json.Unmarshal(sb.Data, &data) == nil {
			block.Payload = document.ImagePayload{Source: data.Source, Alt: data.Alt, Caption: data.Caption}
			return block
		}
	case "table":
		block.Payload = document.TablePayload{
			Caption: stringAttr(block.Attributes, "caption"),
			Data:    append(json.RawMessage(nil), sb.Data...),
		}
		delete(block.Attributes, "caption")
		block.Attributes = dropEmpty(block.Attributes)
		return block
	case "chart":
		block.Payload = document.ChartPayload{
			Caption: stringAttr(block.Attributes, "caption"),
			Data:    append(json.RawMessage(nil), sb.Data...),
		}
		delete(block.Attributes, "caption")
		block.Attributes = dropEmpty(block.Attributes)
		return block
	case "esgMetric":
		var data serverMetricData
		if json.Unmarshal(sb.Data, &data) == nil {
			payload := document.MetricPayload{
				Code:          data.Code,
				Values:        data.Values,
				Unit:          data.Unit,
				Visualization: data.Visualization,
			}
			for _, ref := range data.References {
				payload.References = append(payload.References, document.Reference{Title: ref.Title, URL: ref.URL})
			}
			block.Payload = payload
			return block
		}
	}

	// Unrecognized type, or a known type whose body does not parse. Either
	// way the raw fields survive verbatim.
	block.Payload = document.UnknownPayload{
		WireType: sb.BlockType,
		Content:  append(json.RawMessage(nil), sb.Content...),
		Data:     append(json.RawMessage(nil), sb.Data...),
		Children: append(json.RawMessage(nil), sb.Children...),
	}
	return block
}

func toServerBlock(block document.Block) ServerBlock {
	sb := ServerBlock{ID: block.ID, Attributes: copyAttrs(block.Attributes)}

	switch payload := block.Payload.(type) {
	case document.TextPayload:
		sb.BlockType = "paragraph"
		if payload.Role == document.RoleQuote {
			sb.BlockType = "quote"
		}
		sb.Content = marshalInlines(payload.Content)
	case document.HeadingPayload:
		sb.BlockType = "heading"
		sb.Attributes = setAttr(sb.Attributes, "level", payload.Level)
		sb.Content = marshalInlines(payload.Content)
	case document.ListPayload:
		sb.BlockType = "list"
		listType := "unordered"
		if payload.Ordered {
			listType = "ordered"
		}
		sb.Attributes = setAttr(sb.Attributes, "listType", listType)
		if payload.Start != 0 {
			sb.Attributes = setAttr(sb.Attributes, "startNumber", payload.Start)
		}
		sb.Children = marshalListItems(payload.Items)
	case document.ImagePayload:
		sb.BlockType = "image"
		sb.Data, _ = json.Marshal(serverImageData{Source: payload.Source, Alt: payload.Alt, Caption: payload.Caption})
	case document.TablePayload:
		sb.BlockType = "table"
		if payload.Caption != "" {
			sb.Attributes = setAttr(sb.Attributes, "caption", payload.Caption)
		}
		sb.Data = append(json.RawMessage(nil), payload.Data...)
	case document.ChartPayload:
		sb.BlockType = "chart"
		if payload.Caption != "" {
			sb.Attributes = setAttr(sb.Attributes, "caption", payload.Caption)
		}
		sb.Data = append(json.RawMessage(nil), payload.Data...)
	case document.MetricPayload:
		sb.BlockType = "esgMetric"
		data := serverMetricData{
			Code:          payload.Code,
			Values:        payload.Values,
			Unit:          payload.Unit,
			Visualization: payload.Visualization,
		}
		for _, ref := range payload.References {
			data.References = append(data.References, serverReference{Title: ref.Title, URL: ref.URL})
		}
		sb.Data, _ = json.Marshal(data)
	case document.UnknownPayload:
		sb.BlockType = payload.WireType
		sb.Content = append(json.RawMessage(nil), payload.Content...)
		sb.Data = append(json.RawMessage(nil), payload.Data...)
		sb.Children = append(json.RawMessage(nil), payload.Children...)
	}
	return sb
}

func parseInlines(raw json.RawMessage) ([]document.Inline, bool) {
	if len(raw) == 0 {
		return []document.Inline{}, true
	}
	var spans []ServerInline
	if err := json.Unmarshal(raw, &spans); err != nil {
		return nil, false
	}
	return toInlines(spans), true
}

func toInlines(spans []ServerInline) []document.Inline {
	nodes := make([]document.Inline, 0, len(spans))
	for _, span := range spans {
		node := document.Inline{ID: span.ID, Text: span.Text}
		for _, mark := range span.Marks {
			node.Marks = append(node.Marks, document.Mark(mark))
		}
		if span.Link != nil {
			node.Link = &document.Link{URL: span.Link.URL, Title: span.Link.Title, Target: span.Link.Target}
		}
		if span.Annotation != nil {
			node.Annotation = &document.Annotation{
				ID:        span.Annotation.ID,
				AuthorID:  span.Annotation.AuthorID,
				Text:      span.Annotation.Text,
				CreatedAt: span.Annotation.CreatedAt,
				Resolved:  span.Annotation.Resolved,
			}
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func marshalInlines(nodes []document.Inline) json.RawMessage {
	out, _ := json.Marshal(toServerInlines(nodes))
	return out
}

func toServerInlines(nodes []document.Inline) []ServerInline {
	spans := make([]ServerInline, 0, len(nodes))
	for _, node := range nodes {
		span := ServerInline{ID: node.ID, Type: "inline", Text: node.Text}
		for _, mark := range node.Marks {
			span.Marks = append(span.Marks, string(mark))
		}
		if node.Link != nil {
			span.Link = &ServerLink{URL: node.Link.URL, Title: node.Link.Title, Target: node.Link.Target}
		}
		if node.Annotation != nil {
			span.Annotation = &ServerAnnotation{
				ID:        node.Annotation.ID,
				AuthorID:  node.Annotation.AuthorID,
				Text:      node.Annotation.Text,
				CreatedAt: node.Annotation.CreatedAt,
				Resolved:  node.Annotation.Resolved,
			}
		}
		spans = append(spans, span)
	}
	return spans
}

func parseListItems(raw json.RawMessage) ([]document.ListItem, bool) {
	if len(raw) == 0 {
		return []document.ListItem{}, true
	}
	var entries []ServerListItem
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return toListItems(entries), true
}

func toListItems(entries []ServerListItem) []document.ListItem {
	items := make([]document.ListItem, 0, len(entries))
	for _, entry := range entries {
		item := document.ListItem{ID: entry.ID, Content: toInlines(entry.Content)}
		if len(entry.Items) > 0 {
			item.Items = toListItems(entry.Items)
		}
		items = append(items, item)
	}
	return items
}

func marshalListItems(items []document.ListItem) json.RawMessage {
	out, _ := json.Marshal(toServerListItems(items))
	return out
}

func toServerListItems(items []document.ListItem) []ServerListItem {
	entries := make([]ServerListItem, 0, len(items))
	for _, item := range items {
		entry := ServerListItem{ID: item.ID, Content: toServerInlines(item.Content)}
		if len(item.Items) > 0 {
			entry.Items = toServerListItems(item.Items)
		}
		entries = append(entries, entry)
	}
	return entries
}

func copyAttrs(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func dropEmpty(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func setAttr(attrs map[string]any, key string, value any) map[string]any {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[key] = value
	return attrs
}

func stringAttr(attrs map[string]any, key string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

func intAttr(attrs map[string]any, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

func formatUserID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func parseWireID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(bareTimeLayout, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
