package webhook

import (
	"regexp"
	"strings"
)

// The webhook backend encodes the relational fields of an appointment as
// labeled lines inside the free-text description:
//
//	Lehrer: Max Müller
//	Schüler: Anna Schmidt
//	Thema: Quadratische Gleichungen
//	Kontakt Schüler: anna@example.com
//	Kontakt Lehrer: max@example.com
//
// Labels are fixed, case-sensitive German strings; the value runs to the end
// of the line. Matching is anchored at line start so that "Schüler:" never
// matches the middle of a "Kontakt Schüler:" line.
var (
	teacherRe        = labelPattern("Lehrer")
	studentRe        = labelPattern("Schüler")
	topicRe          = labelPattern("Thema")
	studentContactRe = labelPattern("Kontakt Schüler")
	teacherContactRe = labelPattern("Kontakt Lehrer")
)

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(label) + `:[ \t]*(.*)$`)
}

// DescriptionFields holds whatever could be recovered from a description.
// Unmatched labels stay empty; extraction never fails.
type DescriptionFields struct {
	Teacher        string
	Student        string
	Topic          string
	StudentContact string
	TeacherContact string
}

// ExtractDescription pulls the labeled fields out of a free-text description.
// Empty input yields the zero value.
func ExtractDescription(description string) DescriptionFields {
	var f DescriptionFields
	if description == "" {
		return f
	}
	f.Teacher = firstMatch(teacherRe, description)
	f.Student = firstMatch(studentRe, description)
	f.Topic = firstMatch(topicRe, description)
	f.StudentContact = firstMatch(studentContactRe, description)
	f.TeacherContact = firstMatch(teacherContactRe, description)
	return f
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ComposeDescription is the inverse of ExtractDescription, used when creating
// appointments: it renders the labeled lines the backend expects. Empty
// contact fields are omitted.
func ComposeDescription(teacher, student, topic, studentContact, teacherContact string) string {
	lines := []string{
		"Lehrer: " + teacher,
		"Schüler: " + student,
		"Thema: " + topic,
	}
	if studentContact != "" {
		lines = append(lines, "Kontakt Schüler: "+studentContact)
	}
	if teacherContact != "" {
		lines = append(lines, "Kontakt Lehrer: "+teacherContact)
	}
	return strings.Join(lines, "\n")
}
