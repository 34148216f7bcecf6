package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kestrel-cloud/ragdex/internal/db"
	"github.com/kestrel-cloud/ragdex/internal/domain"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// The returned entry scores are cosine similarity in [0,1], converted from the
// backend's cosine distance; the retrieval layer treats them as provisional.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB AS %s]", q.K, db.FieldVector, db.ScoreField)
	queryStr := "*=>" + knnPart
	if pre := buildPreFilter(q.Filter); pre != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", pre, knnPart)
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, db.ScoreField)
	}
	args = append(args, "PARAMS", "2", "BLOB", db.EncodeVector(q.Vector), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseSearchReply(raw, true)
}

// SearchBM25 runs a BM25 text search over the content field via FT.SEARCH.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	textPart := fmt.Sprintf("@%s:(%s)", db.FieldContent, escapeQuery(q.Query))
	queryStr := textPart
	if pre := buildPreFilter(q.Filter); pre != "" {
		queryStr = pre + " " + textPart
	}

	args := []string{
		q.IndexName, queryStr,
		"WITHSCORES",
		"RETURN", "1", db.FieldRefID,
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseScoredReply(raw)
}

// --- Reply parsing ---

// parseSearchReply parses the 2-stride reply [total, key1, fields1, ...].
func parseSearchReply(raw []rueidis.RedisMessage, knnScore bool) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: parseFieldPairs(fields)}
		if knnScore {
			if distStr, ok := entry.Fields[db.ScoreField]; ok {
				if d, err := strconv.ParseFloat(distStr, 64); err == nil {
					entry.Score = max(0, 1.0-d) // cosine distance → similarity
				}
				delete(entry.Fields, db.ScoreField)
			}
		}
		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseScoredReply parses the WITHSCORES 3-stride reply
// [total, key1, score1, fields1, ...].
func parseScoredReply(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildPreFilter translates the indexable parts of a domain.Filter into an
// FT.SEARCH pre-filter. Metadata equality is applied in the repository layer
// since arbitrary metadata keys are not part of the FT schema.
func buildPreFilter(f domain.Filter) string {
	var parts []string

	if f.Modality != "" {
		parts = append(parts, tagFilter(db.FieldModality, string(f.Modality)))
	}
	if f.RefCollection != "" {
		parts = append(parts, tagFilter(db.FieldRefColl, f.RefCollection))
	}
	if !f.CreatedFrom.IsZero() || !f.CreatedTo.IsZero() {
		lo, hi := "-inf", "+inf"
		if !f.CreatedFrom.IsZero() {
			lo = strconv.FormatInt(f.CreatedFrom.Unix(), 10)
		}
		if !f.CreatedTo.IsZero() {
			hi = strconv.FormatInt(f.CreatedTo.Unix(), 10)
		}
		parts = append(parts, fmt.Sprintf("@%s:[%s %s]", db.FieldCreatedAt, lo, hi))
	}

	return strings.Join(parts, " ")
}

func tagFilter(field, value string) string {
	return fmt.Sprintf("@%s:{%s}", field, tagEscaper.Replace(value))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "\"", "\\\"", "'", "\\'",
	":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)",
	"-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, `@`, `\@`,
	`{`, `\{`, `}`, `\}`, `(`, `\(`, `)`, `\)`,
	`|`, `\|`, `-`, `\-`, `~`, `\~`, `*`, `\*`,
	`[`, `\[`, `]`, `\]`, `!`, `\!`, `%`, `\%`,
	`^`, `\^`, `$`, `\$`, `<`, `\<`, `>`, `\>`,
	`=`, `\=`, `;`, `\;`, `+`, `\+`,
)
