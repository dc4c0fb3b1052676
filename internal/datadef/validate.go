package datadef

import (
	"fmt"
	"strings"
)

// safeSegment — имя годится как сегмент пути (каталог источника / файл объекта).
func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return false
	}
	return !strings.HasPrefix(s, "_") && !strings.HasPrefix(s, ".")
}

// ValidateObjectDefinition возвращает список проблем; пустой список — объект валиден.
func ValidateObjectDefinition(obj ObjectDef) []string {
	var problems []string

	if strings.TrimSpace(obj.Name) == "" {
		problems = append(problems, "Object name is required")
	} else if !safeSegment(obj.Name) {
		problems = append(problems, fmt.Sprintf("Object name %q is not a valid file name", obj.Name))
	}
	if strings.TrimSpace(obj.Source) == "" {
		problems = append(problems, "Source is required")
	}
	if strings.TrimSpace(obj.DataSource) == "" {
		problems = append(problems, "Data source is required")
	} else if !safeSegment(obj.DataSource) {
		problems = append(problems, fmt.Sprintf("Data source name %q is not a valid directory name", obj.DataSource))
	}
	if len(obj.Fields) == 0 {
		problems = append(problems, "At least one field is required")
	}

	for i, f := range obj.Fields {
		if f.Name == "" {
			problems = append(problems, fmt.Sprintf("Field %d: name is required", i+1))
		}
		if f.Type == "" {
			problems = append(problems, fmt.Sprintf("Field %d: type is required", i+1))
		} else if !f.Type.Valid() {
			problems = append(problems, fmt.Sprintf("Field %d: unknown type %q", i+1, f.Type))
		}
		if f.Mapping == "" {
			problems = append(problems, fmt.Sprintf("Field %d: mapping is required", i+1))
		}
	}
	return problems
}

type Issue struct {
	DataSource string `json:"dataSource,omitempty"`
	Object     string `json:"object,omitempty"`
	Field      string `json:"field,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Lint проверяет весь каталог определений на противоречия между файлами.
func (m *Manager) Lint() []Issue {
	var issues []Issue

	sources := m.LoadDataSources()
	known := make(map[string]struct{}, len(sources))
	for _, ds := range sources {
		if _, dup := known[ds.Name]; dup {
			issues = append(issues, Issue{
				DataSource: ds.Name,
				Code:       "datasource_duplicate",
				Message:    "data source is declared more than once in _access.yaml",
			})
		}
		known[ds.Name] = struct{}{}
		if err := ValidateDataSource(ds); err != nil {
			issues = append(issues, Issue{
				DataSource: ds.Name,
				Code:       "datasource_invalid",
				Message:    err.Error(),
			})
		}
	}

	for _, obj := range m.LoadObjectDefinitions() {
		if _, ok := known[obj.DataSource]; !ok {
			issues = append(issues, Issue{
				DataSource: obj.DataSource,
				Object:     obj.Name,
				Code:       "datasource_unknown",
				Message:    fmt.Sprintf("object references unknown data source %q", obj.DataSource),
			})
		}

		seen := map[string]struct{}{}
		for _, f := range obj.Fields {
			if _, dup := seen[f.Name]; dup {
				issues = append(issues, Issue{
					DataSource: obj.DataSource,
					Object:     obj.Name,
					Field:      f.Name,
					Code:       "field_duplicate",
					Message:    "field name is used more than once",
				})
			}
			seen[f.Name] = struct{}{}
			if !f.Type.Valid() {
				issues = append(issues, Issue{
					DataSource: obj.DataSource,
					Object:     obj.Name,
					Field:      f.Name,
					Code:       "field_type_unknown",
					Message:    fmt.Sprintf("unknown field type %q", f.Type),
				})
			}
		}

		// primaryKey может указывать и на имя поля, и на колонку источника
		if pk := obj.PrimaryKey; pk != "" {
			found := false
			for _, f := range obj.Fields {
				if f.Name == pk || f.Mapping == pk {
					found = true
					break
				}
			}
			if !found {
				issues = append(issues, Issue{
					DataSource: obj.DataSource,
					Object:     obj.Name,
					Field:      pk,
					Code:       "primary_key_unknown",
					Message:    "primaryKey does not match any field name or mapping",
				})
			}
		}
	}
	return issues
}
