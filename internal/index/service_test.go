package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depindex/internal/gateway/repository/gemstore"
	"depindex/internal/index"
)

func newService(t *testing.T, store index.Store, algorithm string) *index.Service {
	t.Helper()
	fp, err := index.NewFingerprinter(algorithm)
	require.NoError(t, err)
	svc, err := index.NewService(store, index.Config{Fingerprinter: fp})
	require.NoError(t, err)
	return svc
}

func register(t *testing.T, svc *index.Service, name, number, platform string, deps ...index.Dependency) {
	t.Helper()
	_, err := svc.RegisterVersion(context.Background(), index.VersionSpec{
		Name: name, Number: number, Platform: platform, Dependencies: deps,
	})
	require.NoError(t, err)
}

func TestPackageDependenciesFingerprintMatchesPersisted(t *testing.T) {
	ctx := context.Background()
	store := gemstore.NewMemoryStore()
	svc := newService(t, store, "")
	register(t, svc, "rack", "1.0.0", "")

	res, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)
	assert.False(t, res.NotModified)
	assert.Equal(t, "1.0.0 \n", string(res.Artifact.Body))
	assert.Equal(t, svc.Fingerprinter().Sum([]byte("1.0.0 \n")), res.Artifact.Fingerprint)

	stored, err := store.Fingerprint(ctx, "rack")
	require.NoError(t, err)
	assert.Equal(t, res.Artifact.Fingerprint, stored)

	again, err := svc.PackageDependencies(ctx, "rack", res.Artifact.Fingerprint)
	require.NoError(t, err)
	assert.True(t, again.NotModified)
	assert.Empty(t, again.Artifact.Body)
	assert.Equal(t, stored, again.Artifact.Fingerprint)
}

func TestRegisterChangesFingerprint(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "sha256")
	register(t, svc, "rack", "1.0.0", "")
	first, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)

	register(t, svc, "rack", "1.1.0", "java", index.Dependency{Name: "jruby-openssl", Requirement: ">= 0"})
	second, err := svc.PackageDependencies(ctx, "rack", first.Artifact.Fingerprint)
	require.NoError(t, err)
	assert.False(t, second.NotModified)
	assert.NotEqual(t, first.Artifact.Fingerprint, second.Artifact.Fingerprint)
	assert.Equal(t, "1.0.0 \n1.1.0-java jruby-openssl:>= 0\n", string(second.Artifact.Body))
}

func TestGlobalArtifacts(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")

	empty, err := svc.Names(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Artifact.Body)
	assert.Equal(t, svc.Fingerprinter().Sum(nil), empty.Artifact.Fingerprint)

	register(t, svc, "rails", "7.0.0", "")
	register(t, svc, "rack", "1.0.0", "")
	register(t, svc, "rack", "1.1.0", "")

	names, err := svc.Names(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "rack\nrails\n", string(names.Artifact.Body))

	versions, err := svc.Versions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "rack 1.0.0,1.1.0\nrails 7.0.0\n", string(versions.Artifact.Body))

	cached, err := svc.Versions(ctx, versions.Artifact.Fingerprint)
	require.NoError(t, err)
	assert.True(t, cached.NotModified)
}

func TestDeregisterLastVersion(t *testing.T) {
	ctx := context.Background()
	store := gemstore.NewMemoryStore()
	svc := newService(t, store, "")
	register(t, svc, "rack", "1.0.0", "")

	ref, err := svc.DeregisterVersion(ctx, index.VersionRef{Name: "rack", Number: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, index.VersionRef{Name: "rack", Number: "1.0.0", Platform: index.DefaultPlatform}, ref)

	_, err = svc.PackageDependencies(ctx, "rack", "")
	assert.ErrorIs(t, err, index.ErrNotFound)

	stored, err := store.Fingerprint(ctx, "rack")
	require.NoError(t, err)
	assert.Empty(t, stored)

	names, err := svc.Names(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "rack\n", string(names.Artifact.Body))

	versions, err := svc.Versions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, versions.Artifact.Body)

	_, err = svc.DeregisterVersion(ctx, index.VersionRef{Name: "rack", Number: "1.0.0"})
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestReregisterKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")
	register(t, svc, "rack", "1.0.0", "")
	register(t, svc, "rack", "1.1.0", "")
	_, err := svc.DeregisterVersion(ctx, index.VersionRef{Name: "rack", Number: "1.0.0"})
	require.NoError(t, err)
	register(t, svc, "rack", "1.0.0", "", index.Dependency{Name: "rake", Requirement: "> 0"})

	res, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0 rake:> 0\n1.1.0 \n", string(res.Artifact.Body))
}

func TestRegisterRejections(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")
	register(t, svc, "rack", "1.0.0", "")

	_, err := svc.RegisterVersion(ctx, index.VersionSpec{Name: "rack", Number: "1.0.0", Platform: "ruby"})
	assert.ErrorIs(t, err, index.ErrVersionExists)

	for _, spec := range []index.VersionSpec{
		{Name: "", Number: "1.0.0"},
		{Name: "rack", Number: ""},
		{Name: "ra ck", Number: "1.0.0"},
		{Name: "rack", Number: "1.0.0", Platform: "x86\nlinux"},
	} {
		_, err := svc.RegisterVersion(ctx, spec)
		assert.ErrorIs(t, err, index.ErrInvalidSpec, "%+v", spec)
	}
}

func TestPackageDependenciesUnknown(t *testing.T) {
	svc := newService(t, gemstore.NewMemoryStore(), "")
	_, err := svc.PackageDependencies(context.Background(), "missing", "")
	var nf *index.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestInvariantViolationIsReported(t *testing.T) {
	ctx := context.Background()
	store := gemstore.NewMemoryStore()
	svc := newService(t, store, "")
	register(t, svc, "rack", "1.0.0", "")
	store.SetFingerprintUnsafe("rack", "deadbeef")

	_, err := svc.PackageDependencies(ctx, "rack", "")
	var inv *index.InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "rack", inv.Package)
	assert.Equal(t, index.Fingerprint("deadbeef"), inv.Stored)
	assert.Equal(t, svc.Fingerprinter().Sum([]byte("1.0.0 \n")), inv.Computed)
	assert.Equal(t, uint64(1), svc.Metrics().InvariantErr)
}

func TestAlgorithmSwitchNeedsReindex(t *testing.T) {
	ctx := context.Background()
	store := gemstore.NewMemoryStore()
	old := newService(t, store, "md5")
	register(t, old, "rack", "1.0.0", "")
	register(t, old, "rails", "7.0.0", "")

	svc := newService(t, store, "blake3")
	_, err := svc.PackageDependencies(ctx, "rack", "")
	require.ErrorIs(t, err, index.ErrEncodingInvariant)

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)
	assert.Equal(t, svc.Fingerprinter().Sum([]byte("1.0.0 \n")), res.Artifact.Fingerprint)
}

func TestSkippedHookIsReportedAfterEarlierReads(t *testing.T) {
	ctx := context.Background()
	store := gemstore.NewMemoryStore()
	svc := newService(t, store, "")
	register(t, svc, "rack", "1.0.0", "")

	first, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0 \n", string(first.Artifact.Body))

	noop := func(context.Context, index.Tx, string) error { return nil }
	require.NoError(t, store.AddVersion(ctx, index.VersionSpec{Name: "rack", Number: "2.0.0", Platform: index.DefaultPlatform}, noop))

	res, err := svc.PackageDependencies(ctx, "rack", "")
	require.ErrorIs(t, err, index.ErrEncodingInvariant)
	assert.Empty(t, res.Artifact.Body)

	_, err = svc.PackageDependencies(ctx, "rack", "stale-client-fingerprint")
	require.ErrorIs(t, err, index.ErrEncodingInvariant)
	assert.Equal(t, uint64(2), svc.Metrics().InvariantErr)
}

func TestEveryModifiedReadBuilds(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")
	register(t, svc, "rack", "1.0.0", "")

	var fp index.Fingerprint
	for i := 0; i < 3; i++ {
		res, err := svc.PackageDependencies(ctx, "rack", "")
		require.NoError(t, err)
		assert.Equal(t, "1.0.0 \n", string(res.Artifact.Body))
		fp = res.Artifact.Fingerprint
	}
	res, err := svc.PackageDependencies(ctx, "rack", fp)
	require.NoError(t, err)
	assert.True(t, res.NotModified)

	m := svc.Metrics()
	assert.Equal(t, uint64(3), m.Builds)
	assert.Equal(t, uint64(1), m.NotModified)
}

func TestDependenciesBulk(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")
	register(t, svc, "rack", "1.0.0", "")
	register(t, svc, "rails", "7.0.0", "", index.Dependency{Name: "rack", Requirement: ">= 2.2"})

	got, err := svc.Dependencies(ctx, []string{"rails", "missing", "rack", "rails"}, index.BulkJSON)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"name":"rails","number":"7.0.0","platform":"ruby","dependencies":[["rack",">= 2.2"]]},{"name":"rack","number":"1.0.0","platform":"ruby","dependencies":[]}]`,
		string(got))

	none, err := svc.Dependencies(ctx, []string{"missing"}, index.BulkMarshal)
	require.NoError(t, err)
	require.NotNil(t, none)
	assert.Len(t, none, 0)
}

type failingStore struct {
	index.Store
}

func (failingStore) Fingerprint(context.Context, string) (index.Fingerprint, error) {
	return "", errors.New("connection refused")
}

func TestPackageDependenciesStoreError(t *testing.T) {
	svc := newService(t, failingStore{Store: gemstore.NewMemoryStore()}, "")
	_, err := svc.PackageDependencies(context.Background(), "rack", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, index.ErrNotFound)
}

func TestRackScenario(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, gemstore.NewMemoryStore(), "")
	register(t, svc, "rack", "1.0.0", "ruby")

	names, err := svc.Names(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "rack\n", string(names.Artifact.Body))
	versions, err := svc.Versions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "rack 1.0.0\n", string(versions.Artifact.Body))
	first, err := svc.PackageDependencies(ctx, "rack", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0 \n", string(first.Artifact.Body))

	bulkJSON, err := svc.Dependencies(ctx, []string{"rack"}, index.BulkJSON)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"rack","number":"1.0.0","platform":"ruby","dependencies":[]}]`, string(bulkJSON))
	bulkMarshal, err := svc.Dependencies(ctx, []string{"rack"}, index.BulkMarshal)
	require.NoError(t, err)
	assert.Equal(t, index.RackMarshalFixture(), bulkMarshal)

	register(t, svc, "rack", "1.0.1", "",
		index.Dependency{Name: "foo", Requirement: "= 1.0.0"},
		index.Dependency{Name: "bar", Requirement: ">= 2.1, < 3.0"},
	)
	second, err := svc.PackageDependencies(ctx, "rack", first.Artifact.Fingerprint)
	require.NoError(t, err)
	assert.False(t, second.NotModified)
	assert.Equal(t, "1.0.0 \n1.0.1 bar:>= 2.1, < 3.0,foo:= 1.0.0\n", string(second.Artifact.Body))
	assert.NotEqual(t, first.Artifact.Fingerprint, second.Artifact.Fingerprint)

	third, err := svc.PackageDependencies(ctx, "rack", second.Artifact.Fingerprint)
	require.NoError(t, err)
	assert.True(t, third.NotModified)
}
