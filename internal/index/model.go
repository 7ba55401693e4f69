// Package index builds the dependency index artifacts served to package
// manager clients and guards them with content fingerprints.
//
// A store holds packages, versions and dependencies. The index reads that
// state, encodes it into one of the fixed wire formats, fingerprints the
// encoded bytes, and answers conditional requests against the fingerprint.
// The per-package dependency-list fingerprint is the only state the index
// owns; it is rewritten by mutation hooks inside the store's write
// transaction.
package index

import (
	"sort"
	"strings"
)

// DefaultPlatform is the canonical platform applied to versions registered
// without one. Versions on this platform are listed by number alone.
const DefaultPlatform = "ruby"

// Dependency is a runtime requirement of a version. Requirement is an opaque
// constraint expression and is never parsed.
type Dependency struct {
	Name        string `json:"name"`
	Requirement string `json:"requirement"`
}

// Version is one live (not removed) release of a package.
type Version struct {
	Number       string
	Platform     string
	Prerelease   bool
	Dependencies []Dependency

	// Sequence orders versions of a package by creation. Stores assign it
	// monotonically; a revived version keeps its original value.
	Sequence int64
}

// Token renders the version as it appears in the text indexes: the number
// alone on the canonical platform, number-platform otherwise.
func (v Version) Token() string {
	platform := normalizePlatform(v.Platform)
	if platform == DefaultPlatform {
		return v.Number
	}
	return v.Number + "-" + platform
}

// Package is a named package with its live versions.
type Package struct {
	Name     string
	Versions []Version
}

// PackageState is a consistent read of a package and the dependency-list
// fingerprint persisted for it.
type PackageState struct {
	Package     Package
	Fingerprint Fingerprint
}

// VersionSpec describes a version to register.
type VersionSpec struct {
	Name         string
	Number       string
	Platform     string
	Prerelease   bool
	Dependencies []Dependency
}

// Ref returns the identity of the described version.
func (s VersionSpec) Ref() VersionRef {
	return VersionRef{Name: s.Name, Number: s.Number, Platform: s.Platform}
}

// VersionRef identifies a version within a package.
type VersionRef struct {
	Name     string
	Number   string
	Platform string
}

// Normalize trims whitespace and applies the canonical platform.
func (r VersionRef) Normalize() VersionRef {
	return VersionRef{
		Name:     strings.TrimSpace(r.Name),
		Number:   strings.TrimSpace(r.Number),
		Platform: normalizePlatform(r.Platform),
	}
}

// Normalize trims whitespace and applies the canonical platform. Dependency
// names and requirements are kept verbatim.
func (s VersionSpec) Normalize() VersionSpec {
	ref := s.Ref().Normalize()
	deps := make([]Dependency, len(s.Dependencies))
	copy(deps, s.Dependencies)
	return VersionSpec{
		Name:         ref.Name,
		Number:       ref.Number,
		Platform:     ref.Platform,
		Prerelease:   s.Prerelease,
		Dependencies: deps,
	}
}

// Record is one (package, version) row of a bulk dependency response. It is
// the intermediate representation every bulk encoder consumes.
type Record struct {
	Name         string
	Number       string
	Platform     string
	Dependencies []Dependency
}

func normalizePlatform(platform string) string {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return DefaultPlatform
	}
	return platform
}

// canonicalPackage returns a copy of pkg with versions in creation order and
// dependencies sorted by name, then requirement.
func canonicalPackage(pkg Package) Package {
	versions := make([]Version, len(pkg.Versions))
	for i, v := range pkg.Versions {
		v.Platform = normalizePlatform(v.Platform)
		v.Dependencies = sortedDependencies(v.Dependencies)
		versions[i] = v
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Sequence < versions[j].Sequence
	})
	return Package{Name: pkg.Name, Versions: versions}
}

func sortedDependencies(deps []Dependency) []Dependency {
	out := make([]Dependency, len(deps))
	copy(out, deps)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Requirement < out[j].Requirement
	})
	return out
}

// sortedPackages canonicalizes every package and orders them by name.
func sortedPackages(pkgs []Package) []Package {
	out := make([]Package, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, canonicalPackage(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// recordsFor flattens packages into bulk records, packages in the given
// order and versions in creation order.
func recordsFor(pkgs []Package) []Record {
	var out []Record
	for _, p := range pkgs {
		p = canonicalPackage(p)
		for _, v := range p.Versions {
			out = append(out, Record{
				Name:         p.Name,
				Number:       v.Number,
				Platform:     v.Platform,
				Dependencies: v.Dependencies,
			})
		}
	}
	return out
}
