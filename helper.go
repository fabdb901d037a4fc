package adbm

import (
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const modulePath = "github.com/ruangdeveloper/adbm"

var (
	identifierPattern    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	migrationPrefixRegex = regexp.MustCompile(`^\d{14}_`)
)

func fileExists(fileName string) bool {
	_, err := os.Stat(fileName)
	return !os.IsNotExist(err)
}

func migrationDirExists(migrationFilesDir string) bool {
	info, err := os.Stat(migrationFilesDir)
	return err == nil && info.IsDir()
}

func printTable(data [][]string) {
	if len(data) == 0 {
		fmt.Println("No data to display.")
		return
	}

	colWidths := make([]int, len(data[0]))
	for _, row := range data {
		for colIdx, col := range row {
			if len(col) > colWidths[colIdx] {
				colWidths[colIdx] = len(col)
			}
		}
	}

	printRow := func(row []string) {
		fmt.Print("|")
		for i, col := range row {
			format := fmt.Sprintf(" %%-%ds |", colWidths[i])
			fmt.Printf(format, col)
		}
		fmt.Println()
	}

	printSeparator := func() {
		fmt.Print("+")
		for _, width := range colWidths {
			fmt.Print(strings.Repeat("-", width+2) + "+")
		}
		fmt.Println()
	}

	printSeparator()
	printRow(data[0])
	printSeparator()

	for _, row := range data[1:] {
		printRow(row)
	}
	printSeparator()
}

func sanitizeMigrationName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ToLower(name)
	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}

	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: invalid migration name: %q", ErrInvalidArgument, name)
	}

	return name, nil
}

// sanitizeTableName accepts the characters RethinkDB allows in table names,
// which are also safe to interpolate as SQL identifiers.
func sanitizeTableName(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid table name: %q", name)
	}

	return name, nil
}

func migrationNameToStructName(migrationName string) (string, error) {
	prefix := migrationPrefixRegex.FindString(migrationName)
	if prefix == "" {
		return "", fmt.Errorf("invalid migration name: %s", migrationName)
	}
	timestamp := strings.TrimSuffix(prefix, "_")

	parts := strings.Split(strings.TrimPrefix(migrationName, prefix), "_")
	caser := cases.Title(language.English)
	for i, part := range parts {
		parts[i] = caser.String(part)
	}

	return fmt.Sprintf("M%s%s", timestamp, strings.Join(parts, "")), nil
}

func getPackageNameFromMigrationDir(migrationFilesDir string) string {
	parts := strings.Split(strings.TrimRight(migrationFilesDir, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" || last == "." {
		return "migrations"
	}
	return last
}

func migrationFileTemplate(packageName string, migrationName string) (string, error) {
	structName, err := migrationNameToStructName(migrationName)
	if err != nil {
		return "", err
	}

	migrationTemplate := fmt.Sprintf(`
		package %s

		import (
			"context"

			"%s"
		)

		// %sID is the id recorded in the metadata table once the migration completes.
		const %sID = "%s"

		var %s = adbm.Must(adbm.NewMigration(
			func(ctx context.Context, d adbm.Driver, logger adbm.Logger) error {
				return nil
			},
			func(ctx context.Context, d adbm.Driver, logger adbm.Logger) error {
				return nil
			},
		))
	`,
		packageName,
		modulePath,
		structName,
		structName,
		migrationName,
		structName,
	)

	formatted, err := format.Source([]byte(migrationTemplate))
	if err != nil {
		return "", err
	}

	return string(formatted), nil
}

// encodeDocument splits a document into its primary key and the JSON of the remaining fields.
func encodeDocument(doc Document) (string, []byte, error) {
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("document without string id")
	}

	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" {
			body[k] = v
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode document %q: %w", id, err)
	}
	return id, raw, nil
}

func decodeDocument(id string, raw []byte, fields []string) (Document, error) {
	doc := Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", id, err)
		}
	}
	doc["id"] = id
	return pluck(doc, fields), nil
}

// jsonFieldLiteral quotes a document field name as an SQL string literal.
func jsonFieldLiteral(prefix, field string) string {
	return "'" + prefix + strings.ReplaceAll(field, "'", "''") + "'"
}
