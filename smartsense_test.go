package smartsense_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsense/smartsense"
	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/infrastructure/vectorstore"
	"github.com/smartsense/smartsense/internal/config"
)

const testDimension = 4

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0, 1}
	}
	return out, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(context.Context, string) floorplan.Detection {
	return floorplan.Counted(map[string]int{"room": 3, "door": 2})
}

type recordingCloser struct{ closed int }

func (c *recordingCloser) Close() error {
	c.closed++
	return nil
}

const header = "property_id,title,long_description,location,price,seller_type,listing_date,certificates,seller_contact,metadata_tags,image_file\n"

type fixture struct {
	cfg   config.AppConfig
	index *vectorstore.Memory
}

func newFixture(t *testing.T, rows string) fixture {
	t.Helper()
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	images := filepath.Join(assets, "images")
	require.NoError(t, os.MkdirAll(images, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(assets, "certificates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "p1.png"), []byte("png"), 0o644))

	source := filepath.Join(assets, "listings.csv")
	require.NoError(t, os.WriteFile(source, []byte(header+rows), 0o644))

	cfg := config.NewAppConfigWithOptions(
		config.WithDataDir(filepath.Join(dir, "data")),
		config.WithDBURL("sqlite:///"+filepath.Join(dir, "smartsense.db")),
		config.WithAssets(config.NewAssetsConfig(assets).WithRowSource(source)),
		config.WithEmbeddingDimension(testDimension),
	)
	return fixture{cfg: cfg, index: vectorstore.NewMemory()}
}

func (f fixture) options(extra ...smartsense.Option) []smartsense.Option {
	return append([]smartsense.Option{
		smartsense.WithConfig(f.cfg),
		smartsense.WithEmbedder(fakeEmbedder{}),
		smartsense.WithDetector(fakeDetector{}),
		smartsense.WithVectorStore(f.index),
	}, extra...)
}

func newClient(t *testing.T, f fixture) *smartsense.Client {
	t.Helper()
	client, err := smartsense.New(f.options()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

const threeRows = "P1,Loft,Bright loft,Berlin,450000,agent,2024-01-02,,a@b.c,loft,p1.png\n" +
	"P2,Cottage,Quiet cottage,Hamburg,,owner,2024-02-03,,,,missing.png\n" +
	"P3,Broken,Bad price,Munich,abc,agent,2024-03-04,,,,\n"

func TestClient_RunETL(t *testing.T) {
	f := newFixture(t, threeRows)
	client := newClient(t, f)
	ctx := context.Background()

	report, err := client.RunETL(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsTotal)
	assert.Equal(t, 2, report.RowsProcessed)
	assert.Equal(t, 1, report.RowsFailed)
	assert.Equal(t, []string{"P3"}, report.FailedIDs())
	assert.True(t, report.Succeeded())
	assert.Len(t, f.index.Points(), 2)
	assert.Equal(t, testDimension, f.index.Dimension())

	count, err := client.Properties.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	p1, err := client.Properties.Find(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Floorplan().Count("room"))
	assert.Equal(t, 450000.0, p1.Listing().Price())

	p2, err := client.Properties.Find(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, floorplan.ReasonImageNotFound, p2.Floorplan().Reason())
	assert.Equal(t, 0.0, p2.Listing().Price())
}

func TestClient_RunETLTwiceKeepsOneRecordPerProperty(t *testing.T) {
	f := newFixture(t, threeRows)
	client := newClient(t, f)
	ctx := context.Background()

	_, err := client.RunETL(ctx)
	require.NoError(t, err)
	_, err = client.RunETL(ctx)
	require.NoError(t, err)

	count, err := client.Properties.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, f.index.Points(), 2)
	assert.Equal(t, 2, f.index.Uploads())
}

func TestClient_RunETLMissingSourceIsFatal(t *testing.T) {
	f := newFixture(t, threeRows)
	f.cfg = f.cfg.Apply(config.WithAssets(f.cfg.Assets().WithRowSource(filepath.Join(t.TempDir(), "absent.csv"))))
	client := newClient(t, f)

	_, err := client.RunETL(context.Background())
	require.ErrorIs(t, err, service.ErrFatalConfig)
	assert.Empty(t, f.index.Points())
	assert.Zero(t, f.index.Uploads())
}

func TestClient_SearchAfterIngest(t *testing.T) {
	f := newFixture(t, threeRows)
	client := newClient(t, f)
	ctx := context.Background()

	_, err := client.RunETL(ctx)
	require.NoError(t, err)

	matches, err := client.Search.Properties(ctx, "loft", service.WithLimit(5))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		require.NotNil(t, m.Record)
		assert.Equal(t, m.PropertyID, m.Record.PropertyID())
	}
}

func TestClient_ParseFloorplan(t *testing.T) {
	f := newFixture(t, threeRows)
	client := newClient(t, f)

	d := client.ParseFloorplan(context.Background(), "plan.png")
	assert.True(t, d.OK())
	assert.Equal(t, 5, d.Total())
}

func TestClient_Close(t *testing.T) {
	f := newFixture(t, threeRows)
	closer := &recordingCloser{}
	client, err := smartsense.New(f.options(smartsense.WithCloser(closer))...)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.Equal(t, 1, closer.closed)

	assert.ErrorIs(t, client.Close(), smartsense.ErrClientClosed)
	_, err = client.RunETL(context.Background())
	assert.ErrorIs(t, err, smartsense.ErrClientClosed)
	assert.Equal(t, 1, closer.closed)
}

func TestRunETL_ClosesClient(t *testing.T) {
	f := newFixture(t, threeRows)
	closer := &recordingCloser{}

	report, err := smartsense.RunETL(context.Background(), f.cfg,
		smartsense.WithEmbedder(fakeEmbedder{}),
		smartsense.WithDetector(fakeDetector{}),
		smartsense.WithVectorStore(f.index),
		smartsense.WithCloser(closer),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RowsProcessed)
	assert.Equal(t, 1, closer.closed)
}

func TestRunETL_ClosesClientOnFatalError(t *testing.T) {
	f := newFixture(t, threeRows)
	f.cfg = f.cfg.Apply(config.WithAssets(config.NewAssetsConfig(filepath.Join(t.TempDir(), "nowhere"))))
	closer := &recordingCloser{}

	_, err := smartsense.RunETL(context.Background(), f.cfg,
		smartsense.WithEmbedder(fakeEmbedder{}),
		smartsense.WithVectorStore(f.index),
		smartsense.WithCloser(closer),
	)
	require.ErrorIs(t, err, service.ErrFatalConfig)
	assert.Equal(t, 1, closer.closed)
}

func TestNew_WithoutEmbeddingModel(t *testing.T) {
	f := newFixture(t, threeRows)
	cfg := f.cfg.Apply(config.WithEmbeddingModelDir(filepath.Join(t.TempDir(), "models")))

	_, err := smartsense.New(
		smartsense.WithConfig(cfg),
		smartsense.WithVectorStore(f.index),
	)
	require.ErrorIs(t, err, service.ErrFatalConfig)
	assert.True(t, strings.Contains(err.Error(), "no embedding model"))
}

func TestNew_UnsupportedDatabase(t *testing.T) {
	f := newFixture(t, threeRows)
	cfg := f.cfg.Apply(config.WithDBURL("oracle://db"))

	_, err := smartsense.New(smartsense.WithConfig(cfg), smartsense.WithEmbedder(fakeEmbedder{}))
	require.ErrorIs(t, err, service.ErrConnection)
}
