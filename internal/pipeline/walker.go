package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// sourceExtensions are the file types a decompiler export is written as
var sourceExtensions = map[string]bool{
	".h":   true,
	".hpp": true,
	".c":   true,
	".cpp": true,
	".txt": true,
}

// ExpandInputs turns command line arguments into an ordered list of source
// files. Files are kept as given, in argument order; directories are walked
// and their sources appended in lexical order.
func ExpandInputs(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, clean)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.FileSystemErrorf(err, "cannot read input %s", arg)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && shouldSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if isSourceFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.FileSystemErrorf(err, "failed to walk %s", arg)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// shouldSkipDir excludes hidden directories and previous output
func shouldSkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "generated"
}

func isSourceFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}
