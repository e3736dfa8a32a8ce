package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mirror/internal/assets"
	"github.com/goliatone/go-mirror/internal/blocks"
	"github.com/goliatone/go-mirror/internal/converter"
	"github.com/goliatone/go-mirror/internal/properties"
	"github.com/goliatone/go-mirror/internal/richtext"
	"github.com/goliatone/go-mirror/internal/store"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

type fakeSource struct {
	batches  [][]properties.Page
	children map[string][]blocks.Node
	queryErr error
	childErr map[string]error

	onChildren func(nodeID string)
}

func (f *fakeSource) QueryDocuments(_ context.Context, cursor string) (properties.Batch, error) {
	if f.queryErr != nil {
		return properties.Batch{}, f.queryErr
	}
	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(strings.TrimPrefix(cursor, "c"))
	}
	if idx >= len(f.batches) {
		return properties.Batch{}, nil
	}
	batch := properties.Batch{Pages: f.batches[idx]}
	if idx < len(f.batches)-1 {
		batch.HasMore = true
		batch.NextCursor = fmt.Sprintf("c%d", idx+1)
	}
	return batch, nil
}

func (f *fakeSource) ListChildren(ctx context.Context, nodeID, _ string) (blocks.Page, error) {
	if f.onChildren != nil {
		f.onChildren(nodeID)
	}
	if err := ctx.Err(); err != nil {
		return blocks.Page{}, err
	}
	if err := f.childErr[nodeID]; err != nil {
		return blocks.Page{}, err
	}
	return blocks.Page{Nodes: f.children[nodeID]}, nil
}

type countingFetcher struct {
	counts map[string]int
	fail   map[string]error
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	f.counts[url]++
	if err := f.fail[url]; err != nil {
		return nil, "", err
	}
	return []byte("bytes of " + url), "image/png", nil
}

func (f *countingFetcher) HeadContentType(context.Context, string) (string, error) {
	return "image/png", nil
}

type recordingExporter struct {
	written []string
	removed []string
}

func (r *recordingExporter) Write(doc interfaces.DocumentRecord, _ []string) (bool, error) {
	r.written = append(r.written, doc.Slug)
	return true, nil
}

func (r *recordingExporter) Remove(slug string) error {
	r.removed = append(r.removed, slug)
	return nil
}

type harness struct {
	source  *fakeSource
	store   *store.Memory
	fetcher *countingFetcher
	root    string
	engine  *Engine
}

func newHarness(t *testing.T, source *fakeSource, opts ...Option) *harness {
	t.Helper()
	root := t.TempDir()
	files, err := assets.NewFiles(root)
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}
	mem := store.NewMemory()
	fetcher := &countingFetcher{counts: map[string]int{}}
	resolver := assets.NewResolver(fetcher, files, mem, assets.Config{
		WebBasePath:      "/api/images",
		DefaultExtension: ".png",
		RefreshPrimary:   true,
	})
	conv := converter.New(source, resolver, nil)
	now := func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	engine := New(source, mem, conv, resolver, append([]Option{WithClock(now)}, opts...)...)
	return &harness{source: source, store: mem, fetcher: fetcher, root: root, engine: engine}
}

func (h *harness) run(t *testing.T) *Result {
	t.Helper()
	result, err := h.engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return result
}

func spans(text string) []richtext.Span {
	return []richtext.Span{{Kind: richtext.KindText, Text: text}}
}

func remotePage(id, slug, edited, cover string, tags ...string) properties.Page {
	page := properties.Page{
		ID:             id,
		LastEditedTime: edited,
		Properties: map[string]properties.Property{
			properties.PropertyTitle:         {Type: properties.TypeTitle, Title: spans(strings.ToUpper(slug))},
			properties.PropertySlug:          {Type: properties.TypeRichText, RichText: spans(slug)},
			properties.PropertyPublishedDate: {Type: properties.TypeDate, Date: &properties.DateValue{Start: "2024-03-01"}},
		},
	}
	if len(tags) > 0 {
		opts := make([]properties.Option, len(tags))
		for i, tag := range tags {
			opts[i] = properties.Option{Name: tag}
		}
		page.Properties[properties.PropertyTags] = properties.Property{Type: properties.TypeMultiSelect, MultiSelect: opts}
	}
	if cover != "" {
		page.Cover = &properties.File{Type: "external", URL: cover}
	}
	return page
}

func image(id, url string) blocks.Image {
	return blocks.Image{Base: blocks.Base{ID: id}, URL: url}
}

const (
	coverURL = "https://files.test/cover.jpg"
	bodyURL  = "https://files.test/diagram.png"
)

func twoDocumentSource() *fakeSource {
	return &fakeSource{
		batches: [][]properties.Page{
			{remotePage("page-1", "hello", "2024-03-01T09:30:00.000Z", coverURL, "go", "sql")},
			{remotePage("page-2", "second", "2024-03-02T09:30:00.000Z", "")},
		},
		children: map[string][]blocks.Node{
			"page-1": {
				blocks.Paragraph{Text: spans("Intro")},
				image("aaaa-bbbb", bodyURL),
			},
			"page-2": {blocks.Heading{Level: 1, Text: spans("Only")}},
		},
	}
}

func TestRunCreatesDocumentsAcrossQueryPages(t *testing.T) {
	h := newHarness(t, twoDocumentSource())
	ctx := context.Background()

	result := h.run(t)
	if result.Created != 2 || result.Failed != 0 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v (errors %v)", result, result.Errors)
	}

	doc, err := h.store.GetDocument(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	wantBody := "Intro\n\n![image](/api/images/hello/aaaabbbb.png)"
	if doc.Body != wantBody {
		t.Fatalf("unexpected body %q", doc.Body)
	}
	if doc.FeaturedImage == nil || *doc.FeaturedImage != "/api/images/hello/cover.jpg" {
		t.Fatalf("unexpected featured image %v", doc.FeaturedImage)
	}
	if doc.Title != "HELLO" || doc.Type != properties.DefaultType || doc.PublishedDate != "2024-03-01" {
		t.Fatalf("unexpected document %+v", doc)
	}
	tags, _ := h.store.ListDocumentTags(ctx, "page-1")
	if !reflect.DeepEqual(tags, []string{"go", "sql"}) {
		t.Fatalf("unexpected tags %v", tags)
	}
	ids, _ := h.store.ListAssetIDs(ctx, "page-1")
	if !reflect.DeepEqual(ids, []string{"aaaabbbb", "cover-page-1"}) {
		t.Fatalf("unexpected asset rows %v", ids)
	}
	for _, name := range []string{"aaaabbbb.png", "cover.jpg"} {
		if _, err := os.Stat(filepath.Join(h.root, "hello", name)); err != nil {
			t.Fatalf("expected %s on disk: %v", name, err)
		}
	}
}

func TestRunIsIdempotentAndRefreshesOnlyCovers(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)

	h.run(t)
	second := h.run(t)
	if second.Skipped != 2 || second.Created != 0 || second.Updated != 0 {
		t.Fatalf("expected unchanged pass to skip everything, got %+v", second)
	}
	if h.fetcher.counts[bodyURL] != 1 || h.fetcher.counts[coverURL] != 1 {
		t.Fatalf("unexpected fetch counts %v", h.fetcher.counts)
	}

	source.batches[0][0].LastEditedTime = "2024-03-05T10:00:00Z"
	third := h.run(t)
	if third.Updated != 1 || third.Skipped != 1 {
		t.Fatalf("expected one update, got %+v", third)
	}
	if h.fetcher.counts[bodyURL] != 1 {
		t.Fatalf("expected body image to be fetched once, got %d", h.fetcher.counts[bodyURL])
	}
	if h.fetcher.counts[coverURL] != 2 {
		t.Fatalf("expected cover to be fetched twice, got %d", h.fetcher.counts[coverURL])
	}

	marker, _, _ := h.store.GetDocumentLastEdited(context.Background(), "page-1")
	if marker == nil || !marker.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected marker %v", marker)
	}
}

func TestRunDeletesDocumentsMissingRemotely(t *testing.T) {
	source := twoDocumentSource()
	exporter := &recordingExporter{}
	h := newHarness(t, source, WithExporter(exporter))
	ctx := context.Background()
	h.run(t)

	source.batches = source.batches[1:]
	result := h.run(t)
	if result.Deleted != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := h.store.GetDocument(ctx, "page-1"); !errors.Is(err, interfaces.ErrRecordNotFound) {
		t.Fatalf("expected document to be gone, got %v", err)
	}
	if ids, _ := h.store.ListAssetIDs(ctx, "page-1"); len(ids) != 0 {
		t.Fatalf("expected asset rows to be gone, got %v", ids)
	}
	if tags, _ := h.store.ListDocumentTags(ctx, "page-1"); len(tags) != 0 {
		t.Fatalf("expected tag links to be gone, got %v", tags)
	}
	if _, err := os.Stat(filepath.Join(h.root, "hello")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected asset directory to be removed, got %v", err)
	}
	if !reflect.DeepEqual(exporter.removed, []string{"hello"}) {
		t.Fatalf("expected export removal, got %v", exporter.removed)
	}
	if !reflect.DeepEqual(h.store.TagNames(), []string{"go", "sql"}) {
		t.Fatalf("expected tags to survive, got %v", h.store.TagNames())
	}
}

func TestRunRemovesOrphanedAssets(t *testing.T) {
	source := twoDocumentSource()
	source.children["page-1"] = append(source.children["page-1"], image("cccc-dddd", "https://files.test/extra.gif"))
	h := newHarness(t, source)
	ctx := context.Background()
	h.run(t)

	if ids, _ := h.store.ListAssetIDs(ctx, "page-1"); len(ids) != 3 {
		t.Fatalf("expected three asset rows, got %v", ids)
	}

	source.children["page-1"] = source.children["page-1"][:2]
	source.batches[0][0].LastEditedTime = "2024-03-05T10:00:00Z"
	source.batches[0][0].Cover = nil
	result := h.run(t)
	if result.Updated != 1 {
		t.Fatalf("expected update, got %+v", result)
	}

	ids, _ := h.store.ListAssetIDs(ctx, "page-1")
	if !reflect.DeepEqual(ids, []string{"aaaabbbb"}) {
		t.Fatalf("expected only the referenced body image to remain, got %v", ids)
	}
	for _, name := range []string{"ccccdddd.gif", "cover.jpg"} {
		if _, err := os.Stat(filepath.Join(h.root, "hello", name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be removed, got %v", name, err)
		}
	}
	doc, _ := h.store.GetDocument(ctx, "page-1")
	if doc.FeaturedImage != nil {
		t.Fatalf("expected featured image to be cleared, got %v", *doc.FeaturedImage)
	}
}

func TestRunConversionFailureKeepsMarker(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	ctx := context.Background()
	h.run(t)

	boom := errors.New("upstream 502")
	source.childErr = map[string]error{"page-1": boom}
	source.batches[0][0].LastEditedTime = "2024-03-05T10:00:00Z"
	result := h.run(t)
	if result.Failed != 1 || result.Skipped != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	docErr := result.Errors[0]
	if docErr.Stage != StageConvert || !errors.Is(docErr, converter.ErrConversionFailed) || !errors.Is(docErr, boom) {
		t.Fatalf("unexpected document error %v", docErr)
	}

	marker, _, _ := h.store.GetDocumentLastEdited(ctx, "page-1")
	if !marker.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected marker to stay at the last good revision, got %v", marker)
	}

	source.childErr = nil
	if retry := h.run(t); retry.Updated != 1 {
		t.Fatalf("expected retry to update the document, got %+v", retry)
	}
}

func TestRunSkipsUnparseablePagesWithoutDeleting(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	h.run(t)

	source.batches[1][0].Properties[properties.PropertySlug] = properties.Property{Type: properties.TypeRichText}
	source.batches[0][0].LastEditedTime = "not a timestamp"
	result := h.run(t)
	if result.Failed != 2 || result.Deleted != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !errors.Is(result.Errors[0], ErrMarkerInvalid) || !errors.Is(result.Errors[1], properties.ErrSlugMissing) {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if ids, _ := h.store.ListDocumentIDs(context.Background()); len(ids) != 2 {
		t.Fatalf("expected both documents to be kept, got %v", ids)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	source := twoDocumentSource()
	exporter := &recordingExporter{}
	h := newHarness(t, source, WithExporter(exporter))

	result, err := h.engine.Run(context.Background(), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.DryRun || result.Created != 2 {
		t.Fatalf("unexpected dry-run result %+v", result)
	}
	if ids, _ := h.store.ListDocumentIDs(context.Background()); len(ids) != 0 {
		t.Fatalf("dry run must not write documents, got %v", ids)
	}
	if len(h.fetcher.counts) != 0 || len(exporter.written) != 0 {
		t.Fatalf("dry run must not fetch or export, got %v %v", h.fetcher.counts, exporter.written)
	}
}

func TestRunAbortsWhenEnumerationFails(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	h.run(t)

	source.queryErr = errors.New("unauthorized")
	result, err := h.engine.Run(context.Background(), Options{})
	if err == nil || !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category error, got %v", err)
	}
	if result.Deleted != 0 {
		t.Fatalf("enumeration failure must not delete anything, got %+v", result)
	}
	if ids, _ := h.store.ListDocumentIDs(context.Background()); len(ids) != 2 {
		t.Fatalf("expected documents to be kept, got %v", ids)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t, twoDocumentSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.engine.Run(ctx, Options{})
	if err == nil || !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if result.Created != 0 {
		t.Fatalf("expected no documents processed, got %+v", result)
	}
}

func TestRunExportsWrittenDocuments(t *testing.T) {
	exporter := &recordingExporter{}
	h := newHarness(t, twoDocumentSource(), WithExporter(exporter))
	h.run(t)
	if !reflect.DeepEqual(exporter.written, []string{"hello", "second"}) {
		t.Fatalf("unexpected exports %v", exporter.written)
	}
	h.run(t)
	if len(exporter.written) != 2 {
		t.Fatalf("skipped documents must not be exported again, got %v", exporter.written)
	}
}

func TestRunSkipsWhenStoredMarkerIsNewer(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	ctx := context.Background()
	h.run(t)
	before, _ := h.store.GetDocument(ctx, "page-1")
	fetches := maps.Clone(h.fetcher.counts)

	source.batches[0][0].LastEditedTime = "2024-02-01T09:30:00.000Z"
	source.children["page-1"] = []blocks.Node{blocks.Paragraph{Text: spans("Rewritten")}}
	result := h.run(t)
	if result.Skipped != 2 || result.Updated != 0 || result.Failed != 0 {
		t.Fatalf("expected older remote revision to be skipped, got %+v", result)
	}

	after, _ := h.store.GetDocument(ctx, "page-1")
	if after.Body != before.Body {
		t.Fatalf("expected body to be unchanged, got %q", after.Body)
	}
	if !reflect.DeepEqual(h.fetcher.counts, fetches) {
		t.Fatalf("expected no fetches for skipped documents, got %v", h.fetcher.counts)
	}
	marker, _, _ := h.store.GetDocumentLastEdited(ctx, "page-1")
	if !marker.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected stored marker to be kept, got %v", marker)
	}
}

func TestRunDropsCoverRowWhenCoverFails(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	ctx := context.Background()
	h.run(t)

	if err := os.Remove(filepath.Join(h.root, "hello", "cover.jpg")); err != nil {
		t.Fatalf("remove cover: %v", err)
	}
	h.fetcher.fail = map[string]error{coverURL: errors.New("cover gone")}
	source.batches[0][0].LastEditedTime = "2024-03-05T10:00:00Z"
	result := h.run(t)
	if result.Updated != 1 || result.Failed != 0 {
		t.Fatalf("expected degraded update, got %+v", result)
	}

	doc, _ := h.store.GetDocument(ctx, "page-1")
	if doc.FeaturedImage != nil {
		t.Fatalf("expected no featured image, got %v", *doc.FeaturedImage)
	}
	ids, _ := h.store.ListAssetIDs(ctx, "page-1")
	if !reflect.DeepEqual(ids, []string{"aaaabbbb"}) {
		t.Fatalf("expected the cover row to be removed, got %v", ids)
	}
}

func TestRunFinishesInFlightDocumentOnCancel(t *testing.T) {
	source := twoDocumentSource()
	h := newHarness(t, source)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source.onChildren = func(nodeID string) {
		if nodeID == "page-1" {
			cancel()
		}
	}

	result, err := h.engine.Run(ctx, Options{})
	if err == nil || !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if result.Created != 1 || result.Failed != 0 {
		t.Fatalf("expected the in-flight document to complete, got %+v (errors %v)", result, result.Errors)
	}

	doc, err := h.store.GetDocument(context.Background(), "page-1")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Body != "Intro\n\n![image](/api/images/hello/aaaabbbb.png)" || doc.FeaturedImage == nil {
		t.Fatalf("expected a fully written document, got %+v", doc)
	}
	if tags, _ := h.store.ListDocumentTags(context.Background(), "page-1"); !reflect.DeepEqual(tags, []string{"go", "sql"}) {
		t.Fatalf("expected tags to be linked, got %v", tags)
	}
	if _, err := h.store.GetDocument(context.Background(), "page-2"); !errors.Is(err, interfaces.ErrRecordNotFound) {
		t.Fatalf("expected the next document to wait for the next pass, got %v", err)
	}
}

func TestRunRemovesPreviousSlugDirectory(t *testing.T) {
	source := twoDocumentSource()
	exporter := &recordingExporter{}
	h := newHarness(t, source, WithExporter(exporter))
	ctx := context.Background()
	h.run(t)

	source.batches[0][0].Properties[properties.PropertySlug] = properties.Property{Type: properties.TypeRichText, RichText: spans("renamed")}
	source.batches[0][0].LastEditedTime = "2024-03-05T10:00:00Z"
	result := h.run(t)
	if result.Updated != 1 || result.Failed != 0 {
		t.Fatalf("expected rename update, got %+v (errors %v)", result, result.Errors)
	}

	if _, err := os.Stat(filepath.Join(h.root, "hello")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected previous slug directory to be removed, got %v", err)
	}
	for _, name := range []string{"aaaabbbb.png", "cover.jpg"} {
		if _, err := os.Stat(filepath.Join(h.root, "renamed", name)); err != nil {
			t.Fatalf("expected %s under the new slug: %v", name, err)
		}
	}
	assets, _ := h.store.ListAssets(ctx, "page-1")
	for _, asset := range assets {
		if !strings.Contains(asset.LocalPath, filepath.Join(h.root, "renamed")) {
			t.Fatalf("expected asset rows to point at the new directory, got %s", asset.LocalPath)
		}
	}
	if !reflect.DeepEqual(exporter.removed, []string{"hello"}) {
		t.Fatalf("expected previous export to be removed, got %v", exporter.removed)
	}
}
