package extraction

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFiles reads the given paths into Files. Directories are walked and
// only files with a known extension are picked up; paths named explicitly
// are always loaded so an unsupported file is reported rather than skipped.
func LoadFiles(paths []string) ([]File, error) {
	var files []File

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("file not found: %s", p)
		}

		if !info.IsDir() {
			f, err := loadFile(p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := extensionTypes[strings.ToLower(filepath.Ext(d.Name()))]; ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
		sort.Strings(found)

		for _, path := range found {
			f, err := loadFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}

	return files, nil
}

func loadFile(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return File{
		Name:      name,
		MediaType: DetectMediaType(name, content),
		Content:   content,
	}, nil
}
