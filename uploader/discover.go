package uploader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// InputFile is one discovered candidate.
type InputFile struct {
	Path string
	Name string
	Size int64
}

// HumanSize renders Size for the operator listing.
func (f InputFile) HumanSize() string {
	return humanize.IBytes(uint64(f.Size))
}

// Listing is the sorted result of a discovery pass.
type Listing struct {
	Dir     string
	Pattern string
	Files   []InputFile
}

// TotalSize sums the sizes of all listed files.
func (l *Listing) TotalSize() int64 {
	var n int64
	for _, f := range l.Files {
		n += f.Size
	}
	return n
}

// Contains reports whether filePath was part of this scan.
func (l *Listing) Contains(filePath string) bool {
	i := sort.Search(len(l.Files), func(i int) bool { return l.Files[i].Path >= filePath })
	return i < len(l.Files) && l.Files[i].Path == filePath
}

// Print writes the numbered listing followed by the total.
func (l *Listing) Print(w io.Writer) {
	for i, f := range l.Files {
		fmt.Fprintf(w, "%4d. %s (%s)\n", i+1, f.Name, f.HumanSize())
	}
	fmt.Fprintf(w, "Total of %d files (%s).\n", len(l.Files), humanize.IBytes(uint64(l.TotalSize())))
}

// Discover resolves pattern under dir into absolute regular files sorted by
// path. Patterns may use ** for recursive matching.
func Discover(dir, pattern string) (*Listing, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("data directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("stat data directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = "*"
	}

	matches, err := globUnder(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	seen := make(map[string]bool, len(matches))
	files := make([]InputFile, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, err
		}
		if seen[abs] {
			continue
		}
		st, err := os.Stat(abs)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		seen[abs] = true
		files = append(files, InputFile{Path: abs, Name: filepath.Base(abs), Size: st.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if len(files) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", pattern, dir, ErrNoInputFiles)
	}
	return &Listing{Dir: dir, Pattern: pattern, Files: files}, nil
}

// DiscoverInteractive shows each listing and lets the operator accept it,
// enter a new pattern or exit.
func DiscoverInteractive(dir, pattern string, p Prompter, out io.Writer) (*Listing, error) {
	for {
		listing, err := Discover(dir, pattern)
		if err != nil && !errors.Is(err, ErrNoInputFiles) {
			return nil, err
		}
		if listing != nil {
			listing.Print(out)
		} else {
			fmt.Fprintf(out, "No files match %q in %s.\n", pattern, dir)
		}
		choice := "n"
		if listing != nil {
			choice, err = p.Choose("Will these do?", []string{"Y", "n", "e"})
			if err != nil {
				return nil, err
			}
		}
		switch strings.ToLower(choice) {
		case "y":
			return listing, nil
		case "e":
			return nil, ErrAborted
		}
		next, err := p.Ask("Enter a file pattern (or e to exit):")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(next, "e") {
			return nil, ErrAborted
		}
		if next != "" {
			pattern = next
		}
	}
}

// globUnder matches pattern relative to dir. A "**" segment matches any
// number of directories; what follows it is matched against the file name,
// or against the trailing path segments when it contains a slash.
func globUnder(dir, pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	prefix, rest, recursive := strings.Cut(pattern, "**")
	if !recursive {
		return filepath.Glob(filepath.Join(dir, filepath.FromSlash(pattern)))
	}
	root := filepath.Join(dir, filepath.FromSlash(strings.Trim(prefix, "/")))
	rest = strings.TrimLeft(rest, "/")
	if rest == "" {
		rest = "*"
	}
	if _, err := path.Match(rest, ""); err != nil {
		return nil, err
	}
	depth := strings.Count(rest, "/") + 1

	var matches []string
	err := fs.WalkDir(os.DirFS(root), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if ok, _ := path.Match(rest, lastSegments(rel, depth)); ok {
			matches = append(matches, filepath.Join(root, filepath.FromSlash(rel)))
		}
		return nil
	})
	return matches, err
}

func lastSegments(rel string, n int) string {
	parts := strings.Split(rel, "/")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "/")
}
