package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrTierMissing is wrapped by LoadError when a tier has no backing list.
var ErrTierMissing = errors.New("lexicon: tier list unavailable")

// LoadError reports a tier whose word list could not be read. It is not
// fatal: the tier is loaded as an empty set and detection at that tier
// simply finds nothing.
type LoadError struct {
	Tier Tier
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("lexicon: load %s tier: %v", e.Tier, e.Err)
	}
	return fmt.Sprintf("lexicon: load %s tier from %s: %v", e.Tier, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FileName returns the conventional file name of a tier list, e.g. "strict.txt".
func FileName(tier Tier) string {
	return tier.String() + ".txt"
}

// Load reads one word list per tier from dir (see FileName). When no tiers
// are given all tiers are loaded.
//
// Load always returns a usable Lexicon. Tiers whose file is missing or
// unreadable are empty, and the returned error joins one *LoadError per
// degraded tier. Callers should log the error and continue.
func Load(dir string, tiers ...Tier) (*Lexicon, error) {
	if len(tiers) == 0 {
		tiers = AllTiers()
	}

	words := make(map[Tier][]string, len(tiers))
	var errs []error
	for _, tier := range tiers {
		path := filepath.Join(dir, FileName(tier))
		list, err := readList(path)
		if err != nil {
			errs = append(errs, &LoadError{Tier: tier, Path: path, Err: err})
			words[tier] = nil
			continue
		}
		words[tier] = list
	}

	return New(words), errors.Join(errs...)
}

// readList reads a one-token-per-line file, skipping blank lines.
func readList(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 - lexicon directory is operator configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %w", ErrTierMissing, err)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return scanList(f)
}

func scanList(r io.Reader) ([]string, error) {
	var list []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := Normalize(scanner.Text()); line != "" {
			list = append(list, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan word list: %w", err)
	}
	return list, nil
}

// yamlDocument is the on-disk shape of a single-file lexicon.
type yamlDocument struct {
	Minor    *[]string `yaml:"minor"`
	Moderate *[]string `yaml:"moderate"`
	Strict   *[]string `yaml:"strict"`
}

// LoadYAML decodes a single-file lexicon of the form
//
//	minor: [darn, heck]
//	moderate: [damn]
//	strict: [...]
//
// Unknown keys are rejected. Tiers absent from the document are empty and
// reported as *LoadError in the returned error, like Load does for missing
// files; a malformed document is a hard error and returns a nil Lexicon.
func LoadYAML(r io.Reader) (*Lexicon, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lexicon: decode yaml: %w", err)
	}

	lists := map[Tier]*[]string{
		TierMinor:    doc.Minor,
		TierModerate: doc.Moderate,
		TierStrict:   doc.Strict,
	}
	words := make(map[Tier][]string, len(lists))
	var errs []error
	for _, tier := range AllTiers() {
		list := lists[tier]
		if list == nil {
			errs = append(errs, &LoadError{Tier: tier, Err: ErrTierMissing})
			continue
		}
		words[tier] = *list
	}

	return New(words), errors.Join(errs...)
}

// LoadYAMLFile opens path and decodes it with LoadYAML.
func LoadYAMLFile(path string) (*Lexicon, error) {
	f, err := os.Open(path) // #nosec G304 - lexicon file is operator configuration
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return LoadYAML(f)
}
