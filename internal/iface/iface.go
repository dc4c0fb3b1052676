// Package iface генерирует TypeScript-интерфейсы для объектов и ведёт
// общий utils-файл, куда они складываются.
package iface

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"designer/internal/datadef"
	"designer/internal/fsutil"
	"designer/internal/lock"
)

// InterfaceName: "car-models" / "car_models" / "car models" -> "CarModels".
func InterfaceName(objectName string) string {
	words := strings.FieldsFunc(objectName, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	var b strings.Builder
	for _, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		b.WriteString(string(rs))
	}
	return b.String()
}

func tsType(t datadef.FieldType) string {
	switch t {
	case datadef.FieldString:
		return "string"
	case datadef.FieldNumber:
		return "number"
	case datadef.FieldBoolean:
		return "boolean"
	case datadef.FieldDate:
		return "Date | string"
	case datadef.FieldArray:
		return "any[]"
	case datadef.FieldObject:
		return "Record<string, any>"
	default:
		return "any"
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// tsKey — имя свойства; не-идентификаторы берутся в кавычки.
func tsKey(name string) string {
	if identRe.MatchString(name) {
		return name
	}
	return fmt.Sprintf("%q", name)
}

// Generate строит текст интерфейса для объекта.
func Generate(obj datadef.ObjectDef) string {
	var b strings.Builder
	b.WriteString("export interface ")
	b.WriteString(InterfaceName(obj.Name))
	b.WriteString(" {\n")
	for _, f := range obj.Fields {
		opt := "?"
		if f.Required {
			opt = ""
		}
		fmt.Fprintf(&b, "  %s%s: %s;\n", tsKey(f.Name), opt, tsType(f.Type))
	}
	b.WriteString("}")
	return b.String()
}

// Тело интерфейса без вложенных скобок: `{ a: { b: string } }` не поддерживается.
func blockRe(name string, trailing bool) *regexp.Regexp {
	expr := `(?i)export\s+interface\s+` + regexp.QuoteMeta(name) + `\s*\{[^}]*\}`
	if trailing {
		expr += `\s*`
	}
	return regexp.MustCompile(expr)
}

func headerRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)export\s+interface\s+` + regexp.QuoteMeta(name) + `\s*\{`)
}

// Generator — работа с одним utils-файлом интерфейсов.
type Generator struct {
	Path  string
	locks lock.Locker
}

func NewGenerator(path string, locker lock.Locker) *Generator {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Generator{Path: path, locks: locker}
}

type ExistsResult struct {
	Exists        bool   `json:"exists"`
	InterfaceName string `json:"interfaceName"`
}

func (g *Generator) lockKey() string { return "iface:" + g.Path }

func (g *Generator) read() (string, error) {
	b, err := os.ReadFile(g.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", g.Path, err)
	}
	return string(b), nil
}

// CheckExists — есть ли в файле интерфейс для объекта. Отсутствие файла = нет.
func (g *Generator) CheckExists(objectName string) (ExistsResult, error) {
	name := InterfaceName(objectName)
	content, err := g.read()
	if err != nil {
		return ExistsResult{InterfaceName: name}, err
	}
	return ExistsResult{Exists: headerRe(name).MatchString(content), InterfaceName: name}, nil
}

// AddToFile заменяет существующий блок или дописывает новый в конец.
// Возвращает сгенерированный код.
func (g *Generator) AddToFile(ctx context.Context, obj datadef.ObjectDef) (string, error) {
	code := Generate(obj)
	unlock, err := g.locks.Lock(ctx, g.lockKey())
	if err != nil {
		return "", err
	}
	defer unlock()

	content, err := g.read()
	if err != nil {
		return "", err
	}
	re := blockRe(InterfaceName(obj.Name), false)
	switch {
	case re.MatchString(content):
		done := false
		content = re.ReplaceAllStringFunc(content, func(s string) string {
			if done {
				return s
			}
			done = true
			return code
		})
	case strings.TrimSpace(content) == "":
		content = code + "\n"
	default:
		content = strings.TrimRight(content, "\n") + "\n\n" + code + "\n"
	}
	if err := fsutil.WriteFile(g.Path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", g.Path, err)
	}
	return code, nil
}

// RemoveFromFile вырезает интерфейс объекта. false — такого не было.
func (g *Generator) RemoveFromFile(ctx context.Context, objectName string) (bool, error) {
	unlock, err := g.locks.Lock(ctx, g.lockKey())
	if err != nil {
		return false, err
	}
	defer unlock()

	content, err := g.read()
	if err != nil || content == "" {
		return false, err
	}
	re := blockRe(InterfaceName(objectName), true)
	if !re.MatchString(content) {
		return false, nil
	}
	content = re.ReplaceAllString(content, "")
	content = strings.TrimRight(content, " \t\n")
	if content != "" {
		content += "\n"
	}
	if err := fsutil.WriteFile(g.Path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", g.Path, err)
	}
	return true, nil
}

// Names — все интерфейсы из файла, по алфавиту.
func (g *Generator) Names() ([]string, error) {
	content, err := g.read()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, it := range extract(content) {
		out = append(out, it.Name)
	}
	sort.Strings(out)
	return out, nil
}
