package index

import (
	"context"
	"fmt"
)

// Builder reads current state from a Source and encodes artifacts. It keeps
// no state between calls.
type Builder struct {
	source Source
	fp     Fingerprinter
}

func NewBuilder(source Source, fp Fingerprinter) *Builder {
	return &Builder{source: source, fp: fp}
}

// BuildGlobal encodes a global text artifact and fingerprints it. Global
// fingerprints are never persisted.
func (b *Builder) BuildGlobal(ctx context.Context, format GlobalFormat) (Artifact, error) {
	var body []byte
	switch format {
	case GlobalNames:
		names, err := b.source.PackageNames(ctx)
		if err != nil {
			return Artifact{}, fmt.Errorf("list package names: %w", err)
		}
		body = EncodeNames(names)
	case GlobalVersions:
		pkgs, err := b.source.Packages(ctx)
		if err != nil {
			return Artifact{}, fmt.Errorf("list packages: %w", err)
		}
		body = EncodeVersions(pkgs)
	default:
		return Artifact{}, fmt.Errorf("global format %q: %w", format, ErrUnknownFormat)
	}
	return Artifact{Body: body, Fingerprint: b.fp.Sum(body)}, nil
}

// BuildForPackage encodes the dependency list of one package and checks it
// against the persisted fingerprint read in the same snapshot. A mismatch is
// an *InvariantError; it is reported, not repaired.
func (b *Builder) BuildForPackage(ctx context.Context, name string) (Artifact, error) {
	state, err := b.source.PackageState(ctx, name)
	if err != nil {
		return Artifact{}, fmt.Errorf("load package %s: %w", name, err)
	}
	if len(state.Package.Versions) == 0 {
		return Artifact{}, &NotFoundError{Name: name}
	}
	body := EncodeDependencies(state.Package)
	computed := b.fp.Sum(body)
	if state.Fingerprint != computed {
		return Artifact{}, &InvariantError{Package: name, Stored: state.Fingerprint, Computed: computed}
	}
	return Artifact{Body: body, Fingerprint: computed}, nil
}

// BuildBulk encodes dependency records for names, in the order requested.
// Repeated names count once, at their first position.
func (b *Builder) BuildBulk(ctx context.Context, names []string, format BulkFormat) ([]byte, error) {
	if _, err := ParseBulkFormat(string(format)); err != nil {
		return nil, err
	}
	ordered := uniqueNames(names)
	if len(ordered) == 0 {
		return EncodeBulk(nil, format)
	}
	pkgs, err := b.source.PackagesByName(ctx, ordered)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	byName := make(map[string]Package, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}
	selected := make([]Package, 0, len(pkgs))
	for _, n := range ordered {
		if p, ok := byName[n]; ok {
			selected = append(selected, p)
		}
	}
	return EncodeBulk(recordsFor(selected), format)
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
