package adbm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMigrationName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"My Migration-Name", "my_migration_name", false},
		{"invalid name!!", "", true},
		{"   spaced name   ", "spaced_name", false},
		{"Name-With-Dashes", "name_with_dashes", false},
		{"", "", true},
	}

	for _, tt := range tests {
		result, err := sanitizeMigrationName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("sanitizeMigrationName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidArgument)
		}
		if result != tt.expected {
			t.Errorf("sanitizeMigrationName(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestSanitizeTableName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"valid_table_name", "valid_table_name", false},
		{"invalid table!", "", true},
		{"AnotherOne123", "AnotherOne123", false},
		{"_adbm", "_adbm", false},
		{"", "", true},
	}

	for _, tt := range tests {
		result, err := sanitizeTableName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("sanitizeTableName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if result != tt.expected {
			t.Errorf("sanitizeTableName(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestMigrationNameToStructName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"20240426123456_create_users_table", "M20240426123456CreateUsersTable", false},
		{"invalid_name_without_timestamp", "", true},
	}

	for _, tt := range tests {
		result, err := migrationNameToStructName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("migrationNameToStructName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if result != tt.expected {
			t.Errorf("migrationNameToStructName(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestGetPackageNameFromMigrationDir(t *testing.T) {
	assert.Equal(t, "migrations", getPackageNameFromMigrationDir("migrations"))
	assert.Equal(t, "custompkg", getPackageNameFromMigrationDir("src/custompkg"))
	assert.Equal(t, "migrations", getPackageNameFromMigrationDir("db/migrations/"))
	assert.Equal(t, "migrations", getPackageNameFromMigrationDir("."))
}

func TestMigrationFileTemplate(t *testing.T) {
	code, err := migrationFileTemplate("migrations", "20240426123456_create_users_table")

	assert.NoError(t, err)
	assert.Contains(t, code, "package migrations")
	assert.Contains(t, code, `"github.com/ruangdeveloper/adbm"`)
	assert.Contains(t, code, `const M20240426123456CreateUsersTableID = "20240426123456_create_users_table"`)
	assert.Contains(t, code, "var M20240426123456CreateUsersTable = adbm.Must(adbm.NewMigration(")
}

func TestMigrationFileTemplate_InvalidName(t *testing.T) {
	_, err := migrationFileTemplate("migrations", "create_users_table")
	assert.Error(t, err)
}

func TestEncodeDocument(t *testing.T) {
	completed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

	id, body, err := encodeDocument(Document{"id": "m1", "completed": completed})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.JSONEq(t, `{"completed":"2024-04-26T12:00:00Z"}`, string(body))

	_, _, err = encodeDocument(Document{"completed": completed})
	assert.Error(t, err)

	_, _, err = encodeDocument(Document{"id": 42})
	assert.Error(t, err)
}

func TestDecodeDocument(t *testing.T) {
	doc, err := decodeDocument("m1", []byte(`{"completed":"2024-04-26T12:00:00Z","note":"x"}`), []string{"id", "completed"})
	require.NoError(t, err)
	assert.Equal(t, Document{"id": "m1", "completed": "2024-04-26T12:00:00Z"}, doc)

	doc, err = decodeDocument("m2", nil, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, Document{"id": "m2"}, doc)

	_, err = decodeDocument("m3", []byte(`{not json`), nil)
	assert.Error(t, err)
}

func TestJsonFieldLiteral(t *testing.T) {
	assert.Equal(t, `'email'`, jsonFieldLiteral("", "email"))
	assert.Equal(t, `'$.o''neil'`, jsonFieldLiteral("$.", "o'neil"))
}
