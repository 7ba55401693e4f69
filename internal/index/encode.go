package index

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"depindex/internal/util/jsonutil"
)

// GlobalFormat selects a global-scope text artifact.
type GlobalFormat string

const (
	GlobalNames    GlobalFormat = "names"
	GlobalVersions GlobalFormat = "versions"
)

// BulkFormat selects a bulk dependency record encoding.
type BulkFormat string

const (
	// BulkMarshal is the legacy binary format (Ruby Marshal 4.8).
	BulkMarshal BulkFormat = "marshal"
	BulkJSON    BulkFormat = "json"
	BulkCBOR    BulkFormat = "cbor"
)

// ParseBulkFormat maps a selector to a BulkFormat. The empty selector is the
// legacy binary format.
func ParseBulkFormat(s string) (BulkFormat, error) {
	switch f := BulkFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", BulkMarshal:
		return BulkMarshal, nil
	case BulkJSON, BulkCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("bulk format %q: %w", s, ErrUnknownFormat)
	}
}

// EncodeNames renders the name list: one name per line, sorted byte-wise,
// every line newline-terminated.
func EncodeNames(names []string) []byte {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			sorted = append(sorted, n)
		}
	}
	sort.Strings(sorted)

	buf := bytes.NewBuffer(make([]byte, 0, 16*len(sorted)))
	for i, n := range sorted {
		if i > 0 && sorted[i-1] == n {
			continue
		}
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// EncodeVersions renders the version list: "<name> <tok>,<tok>" per package
// with at least one version, packages sorted by name and tokens in creation
// order.
func EncodeVersions(pkgs []Package) []byte {
	var buf bytes.Buffer
	for _, p := range sortedPackages(pkgs) {
		if len(p.Versions) == 0 {
			continue
		}
		buf.WriteString(p.Name)
		buf.WriteByte(' ')
		for i, v := range p.Versions {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(v.Token())
		}
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return []byte{}
	}
	return buf.Bytes()
}

// EncodeDependencies renders a package's dependency list:
// "<tok> <dep>:<req>,<dep>:<req>" per version in creation order, with
// dependencies sorted by name. A version without dependencies keeps the
// separating space and an empty field.
func EncodeDependencies(pkg Package) []byte {
	var buf bytes.Buffer
	for _, v := range canonicalPackage(pkg).Versions {
		buf.WriteString(v.Token())
		buf.WriteByte(' ')
		for i, d := range v.Dependencies {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(d.Name)
			buf.WriteByte(':')
			buf.WriteString(d.Requirement)
		}
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return []byte{}
	}
	return buf.Bytes()
}

// EncodeBulk renders records in the given format. Zero records encode to an
// empty byte sequence in every format, never to an empty container.
func EncodeBulk(records []Record, format BulkFormat) ([]byte, error) {
	switch format {
	case BulkMarshal, BulkJSON, BulkCBOR:
	default:
		return nil, fmt.Errorf("bulk format %q: %w", format, ErrUnknownFormat)
	}
	if len(records) == 0 {
		return []byte{}, nil
	}
	switch format {
	case BulkJSON:
		return jsonutil.MarshalNoEscape(wireRecords(records))
	case BulkCBOR:
		return encodeCBOR(wireRecords(records))
	default:
		return encodeMarshal(records), nil
	}
}

// wireRecord is the keyed shape shared by the JSON and CBOR encodings.
type wireRecord struct {
	Name         string      `json:"name" cbor:"name"`
	Number       string      `json:"number" cbor:"number"`
	Platform     string      `json:"platform" cbor:"platform"`
	Dependencies [][2]string `json:"dependencies" cbor:"dependencies"`
}

func wireRecords(records []Record) []wireRecord {
	out := make([]wireRecord, 0, len(records))
	for _, r := range records {
		deps := make([][2]string, 0, len(r.Dependencies))
		for _, d := range r.Dependencies {
			deps = append(deps, [2]string{d.Name, d.Requirement})
		}
		out = append(out, wireRecord{
			Name:         r.Name,
			Number:       r.Number,
			Platform:     r.Platform,
			Dependencies: deps,
		})
	}
	return out
}
