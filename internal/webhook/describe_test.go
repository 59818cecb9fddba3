package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        DescriptionFields
	}{
		{
			name:        "all three core labels",
			description: "Lehrer: Meier\nSchüler: Tom\nThema: Algebra",
			want: DescriptionFields{
				Teacher: "Meier",
				Student: "Tom",
				Topic:   "Algebra",
			},
		},
		{
			name: "full description with contacts",
			description: "Lehrer: Max Müller\nSchüler: Anna Schmidt\nThema: Quadratische Gleichungen\n" +
				"Kontakt Schüler: anna@example.com\nKontakt Lehrer: max@example.com",
			want: DescriptionFields{
				Teacher:        "Max Müller",
				Student:        "Anna Schmidt",
				Topic:          "Quadratische Gleichungen",
				StudentContact: "anna@example.com",
				TeacherContact: "max@example.com",
			},
		},
		{
			name:        "empty input",
			description: "",
			want:        DescriptionFields{},
		},
		{
			name:        "no labels at all",
			description: "no labels here",
			want:        DescriptionFields{},
		},
		{
			name:        "values are trimmed",
			description: "Lehrer:   Meier  \nThema:\tGeometrie",
			want: DescriptionFields{
				Teacher: "Meier",
				Topic:   "Geometrie",
			},
		},
		{
			name:        "labels are case-sensitive",
			description: "lehrer: Meier\nLEHRER: Klein",
			want:        DescriptionFields{},
		},
		{
			name:        "label mid-line does not match",
			description: "Der Lehrer: Meier übernimmt",
			want:        DescriptionFields{},
		},
		{
			name:        "contact label does not bleed into student",
			description: "Kontakt Schüler: anna@example.com",
			want: DescriptionFields{
				StudentContact: "anna@example.com",
			},
		},
		{
			name:        "empty value stays empty",
			description: "Lehrer:\nSchüler: Tom",
			want: DescriptionFields{
				Student: "Tom",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDescription(tt.description))
		})
	}
}

func TestComposeDescriptionRoundTrip(t *testing.T) {
	composed := ComposeDescription("Max Müller", "Anna Schmidt", "Mechanik", "anna@example.com", "max@example.com")

	got := ExtractDescription(composed)
	assert.Equal(t, DescriptionFields{
		Teacher:        "Max Müller",
		Student:        "Anna Schmidt",
		Topic:          "Mechanik",
		StudentContact: "anna@example.com",
		TeacherContact: "max@example.com",
	}, got)
}

func TestComposeDescriptionOmitsEmptyContacts(t *testing.T) {
	composed := ComposeDescription("Meier", "Tom", "Algebra", "", "")
	assert.Equal(t, "Lehrer: Meier\nSchüler: Tom\nThema: Algebra", composed)
}
