// Package archive bundles rendered charts into a single zip download.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// FileName is the download name of the archive.
const FileName = "charts.zip"

// Entry is one chart to archive. PNG holds the encoded canvas as it stands,
// finished or not.
type Entry struct {
	Name   string
	Survey string
	PNG    []byte
}

type Options struct {
	// IncludeSurvey appends "_{survey}" to each file name.
	IncludeSurvey bool
	// Modified stamps every file; zero means now.
	Modified time.Time
}

// Write streams one PNG file per entry into a zip archive on w.
func Write(w io.Writer, entries []Entry, opts Options) error {
	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	zw := zip.NewWriter(w)
	for i, name := range Names(entries, opts.IncludeSurvey) {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if _, err := fw.Write(entries[i].PNG); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// Names returns the archive file name of every entry, in order. Names that
// would collide get "-2", "-3", ... so each entry keeps its own file.
func Names(entries []Entry, includeSurvey bool) []string {
	names := make([]string, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		base := sanitize(e.Name)
		if includeSurvey && e.Survey != "" {
			base += "_" + sanitize(e.Survey)
		}
		name := base + ".png"
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = base + "-" + strconv.Itoa(n) + ".png"
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "chart"
	}
	return s
}
