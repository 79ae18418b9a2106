// Package discovery maps (symbol, date) pairs to file paths under a root
// directory and lists what's present on disk: symbols, dates for a
// symbol, and dates common to several symbols.
//
// No example in this codebase's pack owns this concern — there is no
// driver, wire codec, or cache to ground it on — so it is built directly
// on path/filepath and os, the natural standard-library fit for a thin
// directory-naming layer.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/3liv/secdb/errs"
)

// DefaultRoot is used by callers that have not configured one explicitly.
const DefaultRoot = "db"

// dateLayouts are the date string forms ParseDate (and so Path) accepts,
// tried in order.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02"}

// ParseDate parses date against every accepted layout and returns it
// normalized to YYYY-MM-DD.
func ParseDate(date string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}

	return "", fmt.Errorf("%w: %q", errs.ErrInvalidDate, date)
}

// Path returns the on-disk path for (symbol, date) under root:
// <root>/stock/<YYYY>/<MM>/<symbol>-<YYYY-MM-DD>.secdb.
func Path(root, symbol, date string) (string, error) {
	if root == "" {
		return "", errs.ErrInvalidRoot
	}

	if symbol == "" {
		return "", errs.ErrInvalidSymbol
	}

	norm, err := ParseDate(date)
	if err != nil {
		return "", err
	}

	year := norm[:4]
	month := norm[5:7]

	return filepath.Join(root, "stock", year, month, symbol+"-"+norm+".secdb"), nil
}

var filenamePattern = regexp.MustCompile(`^(.+)-(\d{4}-\d{2}-\d{2})\.secdb$`)

// parseFilename extracts (symbol, date) from a file's base name, as
// produced by Path. It returns ok=false for names that don't match.
func parseFilename(name string) (symbol, date string, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}

	return m[1], m[2], true
}

// walk visits every *.secdb file under root/stock, calling fn with the
// (symbol, date) it parses from each one. Paths that don't parse as a
// secdb filename are silently skipped.
func walk(root string, fn func(symbol, date string)) error {
	base := filepath.Join(root, "stock")

	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		symbol, date, ok := parseFilename(d.Name())
		if !ok {
			return nil
		}

		fn(symbol, date)

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", errs.ErrIOError, err)
	}

	return nil
}

// Symbols returns every distinct symbol with at least one file under
// root, sorted.
func Symbols(root string) ([]string, error) {
	if root == "" {
		return nil, errs.ErrInvalidRoot
	}

	seen := map[string]struct{}{}

	err := walk(root, func(symbol, date string) {
		seen[symbol] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}

	sort.Strings(out)

	return out, nil
}

// Dates returns every date with a file for symbol under root, sorted.
func Dates(root, symbol string) ([]string, error) {
	if root == "" {
		return nil, errs.ErrInvalidRoot
	}

	if symbol == "" {
		return nil, errs.ErrInvalidSymbol
	}

	seen := map[string]struct{}{}

	err := walk(root, func(s, date string) {
		if s == symbol {
			seen[date] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}

	sort.Strings(out)

	return out, nil
}

// CommonDates returns the sorted intersection of Dates(root, s) across
// every symbol in symbols.
func CommonDates(root string, symbols []string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	counts := map[string]int{}

	for _, sym := range symbols {
		dates, err := Dates(root, sym)
		if err != nil {
			return nil, err
		}

		for _, d := range dates {
			counts[d]++
		}
	}

	var out []string
	for d, n := range counts {
		if n == len(symbols) {
			out = append(out, d)
		}
	}

	sort.Strings(out)

	return out, nil
}

// Exists reports whether a file for (symbol, date) exists under root.
func Exists(root, symbol, date string) (bool, error) {
	path, err := Path(root, symbol, date)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, fmt.Errorf("%w: %v", errs.ErrIOError, err)
}

