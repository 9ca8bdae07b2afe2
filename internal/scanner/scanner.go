// Package scanner discovers account folders and their statement files
// under an input directory. Each immediate subdirectory is one
// account; its name becomes the account scope.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Account is one discovered account folder: the raw folder name, the
// derived scope slug, and the statement files in sorted order. Sorted
// file order is load-bearing downstream, where the first file to
// present a transaction wins attribution.
type Account struct {
	Folder string
	Scope  string
	Files  []string
}

// Scanner walks an input directory of account folders.
type Scanner struct {
	rootDir string
}

// New creates a scanner for the given input directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// Scan lists the account folders and their statement files. Folders
// with no statement files are skipped. Accounts come back sorted by
// folder name.
func (s *Scanner) Scan() ([]Account, error) {
	rootDir := expandHome(s.rootDir)

	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", rootDir, err)
	}

	var accounts []Account
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		files, err := statementFiles(filepath.Join(rootDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}

		scope, err := ScopeSlug(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("cannot derive scope for folder %q: %w", entry.Name(), err)
		}

		accounts = append(accounts, Account{
			Folder: entry.Name(),
			Scope:  scope,
			Files:  files,
		})
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Folder < accounts[j].Folder })
	return accounts, nil
}

// statementFiles returns the statement files directly inside dir,
// sorted by name.
func statementFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read account folder %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isStatementFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func isStatementFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".qif", ".ofx", ".qfx", ".csv":
		return true
	}
	return false
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// ScopeSlug converts an account folder name to its scope slug.
// Examples: "Virgin Money" → "virgin-money", "MBNA" → "mbna".
func ScopeSlug(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("account folder name cannot be empty")
	}

	// strip combining marks so accented folder names slug cleanly
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize folder name %q: %w", name, err)
	}

	slug := strings.ToLower(normalized)
	slug = nonAlnumRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "", fmt.Errorf("folder name %q contains no alphanumeric characters", name)
	}
	return slug, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
