package datadef

import (
	"strings"

	"github.com/samber/lo"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// FieldChange — поле есть в обеих версиях, но отличается атрибутами.
type FieldChange struct {
	Name       string   `json:"name"`
	Old        Field    `json:"old"`
	New        Field    `json:"new"`
	Attributes []string `json:"attributes"`
}

// PropertyChange — изменение атрибута верхнего уровня (source, primaryKey).
type PropertyChange struct {
	Property string `json:"property"`
	Old      string `json:"old"`
	New      string `json:"new"`
}

type Changes struct {
	NewFields      []Field          `json:"newFields"`
	RemovedFields  []Field          `json:"removedFields"`
	ModifiedFields []FieldChange    `json:"modifiedFields"`
	Properties     []PropertyChange `json:"properties"`
}

// Empty — сохранение ничего не поменяет в схеме.
func (c Changes) Empty() bool {
	return len(c.NewFields) == 0 && len(c.RemovedFields) == 0 &&
		len(c.ModifiedFields) == 0 && len(c.Properties) == 0
}

type ObjectChanges struct {
	IsNew    bool       `json:"isNew"`
	Existing *ObjectDef `json:"existing,omitempty"`
	Changes  Changes    `json:"changes"`
	YAMLDiff string     `json:"yamlDiff"`
}

// GetObjectWithChanges сравнивает сохранённое определение с предлагаемым.
// Объекта нет — isNew, все поля новые.
func (m *Manager) GetObjectWithChanges(objectName, dataSourceName string, newObject ObjectDef) ObjectChanges {
	if newObject.Name == "" {
		newObject.Name = objectName
	}
	if newObject.DataSource == "" {
		newObject.DataSource = dataSourceName
	}

	existing, err := m.LoadObjectDefinition(objectName, dataSourceName)
	if err != nil {
		return ObjectChanges{
			IsNew: true,
			Changes: Changes{
				NewFields:      append([]Field{}, newObject.Fields...),
				RemovedFields:  []Field{},
				ModifiedFields: []FieldChange{},
				Properties:     []PropertyChange{},
			},
			YAMLDiff: YAMLDiff(nil, &newObject),
		}
	}

	return ObjectChanges{
		IsNew:    false,
		Existing: &existing,
		Changes:  DiffObjects(existing, newObject),
		YAMLDiff: YAMLDiff(&existing, &newObject),
	}
}

// DiffObjects делит поля на новые/удалённые/изменённые по имени поля.
func DiffObjects(oldObj, newObj ObjectDef) Changes {
	oldByName := lo.KeyBy(oldObj.Fields, func(f Field) string { return f.Name })
	newByName := lo.KeyBy(newObj.Fields, func(f Field) string { return f.Name })

	ch := Changes{
		NewFields: lo.Filter(newObj.Fields, func(f Field, _ int) bool {
			_, ok := oldByName[f.Name]
			return !ok
		}),
		RemovedFields: lo.Filter(oldObj.Fields, func(f Field, _ int) bool {
			_, ok := newByName[f.Name]
			return !ok
		}),
		ModifiedFields: lo.FilterMap(newObj.Fields, func(f Field, _ int) (FieldChange, bool) {
			prev, ok := oldByName[f.Name]
			if !ok {
				return FieldChange{}, false
			}
			attrs := fieldDiff(prev, f)
			return FieldChange{Name: f.Name, Old: prev, New: f, Attributes: attrs}, len(attrs) > 0
		}),
		Properties: []PropertyChange{},
	}

	if oldObj.Source != newObj.Source {
		ch.Properties = append(ch.Properties, PropertyChange{Property: "source", Old: oldObj.Source, New: newObj.Source})
	}
	if oldObj.PrimaryKey != newObj.PrimaryKey {
		ch.Properties = append(ch.Properties, PropertyChange{Property: "primaryKey", Old: oldObj.PrimaryKey, New: newObj.PrimaryKey})
	}
	return ch
}

func fieldDiff(a, b Field) []string {
	var attrs []string
	if a.Type != b.Type {
		attrs = append(attrs, "type")
	}
	if a.Required != b.Required {
		attrs = append(attrs, "required")
	}
	if a.Mapping != b.Mapping {
		attrs = append(attrs, "mapping")
	}
	return attrs
}

// YAMLDiff — построчный diff YAML-представлений без меток времени.
// Строки помечаются "+ ", "- " и "  ".
func YAMLDiff(oldObj, newObj *ObjectDef) string {
	oldText := diffText(oldObj)
	newText := diffText(newObj)
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func diffText(obj *ObjectDef) string {
	if obj == nil {
		return ""
	}
	c := *obj
	c.Name = ""
	c.CreatedAt = ""
	c.UpdatedAt = ""
	b, err := marshalYAML(c)
	if err != nil {
		return ""
	}
	return string(b)
}
