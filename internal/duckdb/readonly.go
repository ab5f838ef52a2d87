package duckdb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	errChainedStatement = errors.New("query must be a single statement")
	errNotRead          = errors.New("only SELECT and WITH queries are allowed")
)

// writeKeyword matches statements that change the database or its
// environment. Word boundaries keep RESET from matching SET.
var writeKeyword = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|CHECKPOINT)\b`,
)

var blockComment = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// checkReadOnly accepts a single SELECT or WITH statement with no write
// keyword outside comments.
func checkReadOnly(query string) error {
	if strings.Contains(query, ";") {
		return errChainedStatement
	}
	body := strings.TrimSpace(withoutComments(query))
	upper := strings.ToUpper(body)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return errNotRead
	}
	if kw := writeKeyword.FindString(body); kw != "" {
		return fmt.Errorf("query contains disallowed keyword %s", strings.ToUpper(kw))
	}
	return nil
}

func withoutComments(query string) string {
	query = blockComment.ReplaceAllString(query, " ")
	lines := strings.Split(query, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}
