package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/querypilot/agent"
	"github.com/querypilot/agent/pkg/models"
)

const sqlTranslationPrompt = `You translate questions about a database into SQL.

Database schema:
%s

Question: %s

Respond with ONLY a JSON object of this exact shape, no prose:
{"sql": "<a single SELECT statement answering the question>"}

Rules:
- SELECT statements only. Never modify data.
- Use only the tables and columns in the schema above.`

// SQLTool answers natural-language questions about a relational database.
// The model translates the question into a single SELECT which runs against
// the configured connection; rows come back as an aligned text table.
type SQLTool struct {
	db         *sqlx.DB
	translator models.Agent
	schema     string
	maxRows    int
	logger     *slog.Logger
}

func NewSQLTool(db *sqlx.DB, translator models.Agent, schema string, logger *slog.Logger) *SQLTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLTool{db: db, translator: translator, schema: schema, maxRows: 100, logger: logger}
}

func (t *SQLTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "sql_query",
		Description: "Answers questions about the connected database by generating and running a SQL SELECT. Input: a natural-language question, or an explicit SELECT in the sql field.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "Natural-language question about the data",
				},
				"sql": map[string]any{
					"type":        "string",
					"description": "Optional explicit SELECT statement to run instead of translating the question",
				},
			},
			"required":             []any{"question"},
			"additionalProperties": false,
		},
	}
}

func (t *SQLTool) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	question, _ := req.Arguments["question"].(string)
	query, _ := req.Arguments["sql"].(string)

	if strings.TrimSpace(query) == "" {
		translated, err := t.translate(ctx, question)
		if err != nil {
			return agent.ToolResponse{}, err
		}
		query = translated
	}
	if err := requireSelect(query); err != nil {
		return agent.ToolResponse{}, err
	}

	t.logger.Debug("running sql", "query", query)
	rows, err := t.db.QueryxContext(ctx, query)
	if err != nil {
		return agent.ToolResponse{}, fmt.Errorf("sql execution: %w", err)
	}
	defer rows.Close()

	table, count, err := formatRows(rows, t.maxRows)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	if count == 0 {
		return agent.ToolResponse{
			Content:  "The query returned no rows.",
			Metadata: map[string]string{"sql": query, "rows": "0"},
		}, nil
	}
	return agent.ToolResponse{
		Content:  table,
		Metadata: map[string]string{"sql": query, "rows": fmt.Sprintf("%d", count)},
	}, nil
}

func (t *SQLTool) translate(ctx context.Context, question string) (string, error) {
	if t.translator == nil {
		return "", fmt.Errorf("no sql translator configured and no explicit sql given")
	}
	raw, err := t.translator.Generate(ctx, fmt.Sprintf(sqlTranslationPrompt, t.schema, question))
	if err != nil {
		return "", fmt.Errorf("sql translation: %w", err)
	}

	var payload struct {
		SQL string `json:"sql"`
	}
	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil || strings.TrimSpace(payload.SQL) == "" {
		// Some models answer with the bare statement.
		if err := requireSelect(cleaned); err == nil {
			return cleaned, nil
		}
		return "", fmt.Errorf("sql translation returned no usable statement: %q", raw)
	}
	return payload.SQL, nil
}

// requireSelect rejects anything that is not a single read-only statement.
// CTEs are allowed, but both SQLite and Postgres support data-modifying
// statements after a WITH clause, so the top-level verb is checked too.
func requireSelect(query string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if trimmed == "" {
		return fmt.Errorf("empty sql statement")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are allowed, got: %s", firstWord(trimmed))
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple sql statements are not allowed")
	}
	if verb := topLevelMutation(trimmed); verb != "" {
		return fmt.Errorf("only SELECT statements are allowed, got %s inside a WITH statement", verb)
	}
	return nil
}

// topLevelMutation reports the first data-modifying keyword that appears
// outside every parenthesized subquery and string literal, or "".
func topLevelMutation(query string) string {
	forbidden := map[string]bool{
		"DELETE": true, "UPDATE": true, "INSERT": true, "REPLACE": true, "MERGE": true,
	}
	depth := 0
	var word strings.Builder
	checkWord := func() string {
		w := strings.ToUpper(word.String())
		word.Reset()
		if depth == 0 && forbidden[w] {
			return w
		}
		return ""
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'' || ch == '"':
			if w := checkWord(); w != "" {
				return w
			}
			// skip the literal; doubled quotes escape inside it
			for i++; i < len(query); i++ {
				if query[i] == ch {
					if i+1 < len(query) && query[i+1] == ch {
						i++
						continue
					}
					break
				}
			}
		case ch == '(':
			if w := checkWord(); w != "" {
				return w
			}
			depth++
		case ch == ')':
			if w := checkWord(); w != "" {
				return w
			}
			depth--
		case ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z':
			word.WriteByte(ch)
		default:
			if w := checkWord(); w != "" {
				return w
			}
		}
	}
	return checkWord()
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// formatRows renders the result set as a column-aligned text table.
func formatRows(rows *sqlx.Rows, maxRows int) (string, int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return "", 0, fmt.Errorf("sql columns: %w", err)
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	var records [][]string
	count := 0
	truncated := false
	for rows.Next() {
		if count >= maxRows {
			truncated = true
			break
		}
		raw, err := rows.SliceScan()
		if err != nil {
			return "", 0, fmt.Errorf("sql scan: %w", err)
		}
		record := make([]string, len(raw))
		for i, v := range raw {
			record[i] = formatValue(v)
			if len(record[i]) > widths[i] {
				widths[i] = len(record[i])
			}
		}
		records = append(records, record)
		count++
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("sql rows: %w", err)
	}
	if count == 0 {
		return "", 0, nil
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		b.WriteByte('\n')
	}
	writeRow(columns)
	for _, record := range records {
		writeRow(record)
	}
	if truncated {
		fmt.Fprintf(&b, "(showing first %d rows)\n", maxRows)
	}
	return strings.TrimRight(b.String(), " \n"), count, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", val), "0"), ".")
	default:
		return fmt.Sprintf("%v", val)
	}
}

var _ agent.Tool = (*SQLTool)(nil)
