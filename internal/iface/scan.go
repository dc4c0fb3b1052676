package iface

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DefaultScanPaths — куда обычно кладут типы во фронтенде.
var DefaultScanPaths = []string{
	"src/lib/utils/customUtils.ts",
	"src/lib/types",
	"src/lib/interfaces",
	"src/types",
}

var (
	interfaceRe    = regexp.MustCompile(`export\s+interface\s+(\w+)\s*\{([^}]*)\}`)
	fieldRe        = regexp.MustCompile(`(?m)^\s*(\w+)\??\s*:`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(?m)//.*$`)
)

type Info struct {
	Name         string   `json:"name"`
	File         string   `json:"-"` // абсолютный путь, наружу не отдаётся
	RelativePath string   `json:"relativePath"`
	Source       string   `json:"source"`
	Fields       []string `json:"fields"`
}

type ScanResult struct {
	Interfaces []Info   `json:"interfaces"`
	Files      []string `json:"files"`
}

func stripComments(s string) string {
	s = blockCommentRe.ReplaceAllString(s, "")
	return lineCommentRe.ReplaceAllString(s, "")
}

// extract достаёт интерфейсы из текста (без File/RelativePath).
func extract(content string) []Info {
	content = stripComments(content)
	var out []Info
	for _, m := range interfaceRe.FindAllStringSubmatch(content, -1) {
		fields := lo.Map(fieldRe.FindAllStringSubmatch(m[2], -1), func(f []string, _ int) string { return f[1] })
		out = append(out, Info{Name: m[1], Source: m[0], Fields: fields})
	}
	return out
}

var ErrOutsideRoot = errors.New("path is outside of project root")

// Scanner ищет интерфейсы в .ts файлах внутри Root. Пути вне Root отклоняются.
// Paths — что сканировать, если вызывающий ничего не передал.
type Scanner struct {
	Root  string
	Paths []string
}

func (s Scanner) resolve(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.Root, p)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(s.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, p)
	}
	return abs, nil
}

// expand: файл как есть, каталог — все .ts рекурсивно, скрытые каталоги пропускаются.
func (s Scanner) expand(p string) ([]string, error) {
	abs, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{abs}, nil
	}
	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".ts") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Scan обходит пути (иначе s.Paths, иначе DefaultScanPaths). Несуществующие
// пропускаются, нечитаемые файлы логируются и тоже пропускаются.
func (s Scanner) Scan(paths []string) (ScanResult, error) {
	if len(paths) == 0 {
		paths = s.Paths
	}
	if len(paths) == 0 {
		paths = DefaultScanPaths
	}
	res := ScanResult{Interfaces: []Info{}, Files: []string{}}
	seen := map[string]bool{}
	for _, p := range paths {
		files, err := s.expand(p)
		if err != nil {
			return res, err
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			b, err := os.ReadFile(f)
			if err != nil {
				log.Warn().Err(err).Str("file", f).Msg("skip unreadable file")
				continue
			}
			rel, _ := filepath.Rel(s.Root, f)
			rel = filepath.ToSlash(rel)
			res.Files = append(res.Files, rel)
			for _, it := range extract(string(b)) {
				it.File = f
				it.RelativePath = rel
				res.Interfaces = append(res.Interfaces, it)
			}
		}
	}
	sort.SliceStable(res.Interfaces, func(i, j int) bool {
		return res.Interfaces[i].Name < res.Interfaces[j].Name
	})
	return res, nil
}
