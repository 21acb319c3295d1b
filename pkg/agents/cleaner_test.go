package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		roles    []string
		expected CleanedName
	}{
		{
			name: "lifespan extraction",
			raw:  "Shakespeare, William, 1564-1616",
			expected: CleanedName{
				Name:      "Shakespeare, William",
				BirthDate: "1564",
				DeathDate: "1616",
				Roles:     []string{"author"},
			},
		},
		{
			name: "open-ended lifespan",
			raw:  "Doe, Jane, 1950-",
			expected: CleanedName{
				Name:      "Doe, Jane",
				BirthDate: "1950",
				Roles:     []string{"author"},
			},
		},
		{
			name: "parenthesized lifespan",
			raw:  "Tolstoy, Leo (1828-1910)",
			expected: CleanedName{
				Name:      "Tolstoy, Leo",
				BirthDate: "1828",
				DeathDate: "1910",
				Roles:     []string{"author"},
			},
		},
		{
			name: "bracketed role list",
			raw:  "Doe, Jane [editor; illustrator]",
			expected: CleanedName{
				Name:  "Doe, Jane",
				Roles: []string{"editor", "illustrator"},
			},
		},
		{
			name: "enclosing brackets stripped",
			raw:  "[Melville, Herman]",
			expected: CleanedName{
				Name:  "Melville, Herman",
				Roles: []string{"author"},
			},
		},
		{
			name:  "caller roles used when string has none",
			raw:   "Austen, Jane",
			roles: []string{"Translator", "translator", " editor "},
			expected: CleanedName{
				Name:  "Austen, Jane",
				Roles: []string{"translator", "editor"},
			},
		},
		{
			name:  "string roles win over caller roles",
			raw:   "Doe, Jane [editor]",
			roles: []string{"author"},
			expected: CleanedName{
				Name:  "Doe, Jane",
				Roles: []string{"editor"},
			},
		},
		{
			name: "trailing initial period kept",
			raw:  "Wells, H. G.",
			expected: CleanedName{
				Name:  "Wells, H. G.",
				Roles: []string{"author"},
			},
		},
		{
			name: "edge punctuation trimmed",
			raw:  "  Melville, Herman ;",
			expected: CleanedName{
				Name:  "Melville, Herman",
				Roles: []string{"author"},
			},
		},
		{
			name: "empty input",
			raw:  "   ",
			expected: CleanedName{
				Roles: []string{"author"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanName(tt.raw, tt.roles))
		})
	}
}
