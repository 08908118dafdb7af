package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/qdrant/go-client/qdrant"

	"AutoAgent/internal/embedding"
	xerrors "AutoAgent/internal/errors"
)

func newHashingStore(t *testing.T) (*Store, *Local) {
	t.Helper()
	embedder, err := embedding.NewHashing(128)
	if err != nil {
		t.Fatalf("NewHashing: %v", err)
	}
	index := NewLocal()
	return New(embedder, index), index
}

func TestLocalRanksByCosineDescending(t *testing.T) {
	ctx := context.Background()
	index := NewLocal()
	_ = index.Add(ctx, "a", []float32{1, 0}, Metadata{Task: "a"})
	_ = index.Add(ctx, "b", []float32{0, 1}, Metadata{Task: "b"})
	_ = index.Add(ctx, "c", []float32{1, 1}, Metadata{Task: "c"})

	matches, err := index.Search(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "a" || matches[1].ID != "c" {
		t.Fatalf("unexpected ranking: %+v", matches)
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("scores not descending: %+v", matches)
	}
}

func TestLocalBreaksTiesByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	index := NewLocal()
	for _, id := range []string{"first", "second", "third"} {
		if err := index.Add(ctx, id, []float32{0.5, 0.5}, Metadata{Task: id}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	matches, _ := index.Search(ctx, []float32{1, 1}, 3)
	for i, want := range []string{"first", "second", "third"} {
		if matches[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, matches[i].ID)
		}
	}
}

func TestLocalRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	index := NewLocal()
	if err := index.Add(ctx, "x", []float32{1}, Metadata{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := index.Add(ctx, "x", []float32{2}, Metadata{}); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if index.Len() != 1 {
		t.Fatalf("duplicate must not be stored")
	}
}

func TestStoreRememberAndQuery(t *testing.T) {
	ctx := context.Background()
	store, index := newHashingStore(t)

	id, err := store.Remember(ctx, "Write a haiku about autumn", "Leaves drift in cold wind")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid id, got %q", id)
	}
	if _, err := store.Remember(ctx, "Compute sha256 of a file", "abc123"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if index.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", index.Len())
	}

	matches, err := store.Query(ctx, "autumn haiku", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != id {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if matches[0].Metadata.Result != "Leaves drift in cold wind" {
		t.Fatalf("metadata not returned: %+v", matches[0].Metadata)
	}
	if none, _ := store.Query(ctx, "anything", 0); none != nil {
		t.Fatalf("topK=0 should return nothing")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}
func (failingEmbedder) Dimensions() int { return 4 }

func TestStoreWrapsFailuresAsMemoryFailure(t *testing.T) {
	store := New(failingEmbedder{}, NewLocal())
	_, err := store.Remember(context.Background(), "t", "r")
	if xerrors.CodeOf(err) != xerrors.CodeMemoryFailure {
		t.Fatalf("expected memory failure, got %v", err)
	}
	if err := store.Add(context.Background(), " ", nil, Metadata{}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for empty id, got %v", err)
	}
}

func TestChromemAddAndSearch(t *testing.T) {
	ctx := context.Background()
	embedder, _ := embedding.NewHashing(32)
	index, err := NewChromem(chromem.NewDB(), "babyagi_tasks", embedder)
	if err != nil {
		t.Fatalf("NewChromem: %v", err)
	}
	store := New(embedder, index)

	if matches, err := store.Query(ctx, "empty", 3); err != nil || len(matches) != 0 {
		t.Fatalf("expected no matches on empty collection, got %v (err=%v)", matches, err)
	}

	first, err := store.Remember(ctx, "Write a haiku", "five seven five")
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if _, err := store.Remember(ctx, "Check prime numbers", "17 is prime"); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	matches, err := store.Query(ctx, "Write a haiku", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("topK should be capped at collection size, got %d", len(matches))
	}
	if matches[0].ID != first || matches[0].Metadata.Task != "Write a haiku" {
		t.Fatalf("unexpected best match: %+v", matches[0])
	}
}

type stubQdrant struct {
	exists  bool
	created *qdrant.CreateCollection
	upserts []*qdrant.UpsertPoints
	points  []*qdrant.ScoredPoint
	query   *qdrant.QueryPoints
	closed  bool
}

func (s *stubQdrant) CollectionExists(context.Context, string) (bool, error) { return s.exists, nil }

func (s *stubQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	s.created = req
	return nil
}

func (s *stubQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	s.upserts = append(s.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (s *stubQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	s.query = req
	return s.points, nil
}

func (s *stubQdrant) Close() error {
	s.closed = true
	return nil
}

func TestQdrantCreatesCollectionAndMapsPoints(t *testing.T) {
	ctx := context.Background()
	stub := &stubQdrant{}
	index, err := newQdrant(ctx, stub, "babyagi_tasks", 384)
	if err != nil {
		t.Fatalf("newQdrant: %v", err)
	}
	if stub.created == nil || stub.created.GetCollectionName() != "babyagi_tasks" {
		t.Fatalf("expected collection to be created")
	}

	id := uuid.NewString()
	if err := index.Add(ctx, id, []float32{0.1, 0.2}, Metadata{Task: "t", Result: "r"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(stub.upserts) != 1 {
		t.Fatalf("expected one upsert")
	}
	point := stub.upserts[0].GetPoints()[0]
	if point.GetId().GetUuid() != id || point.GetPayload()["task"].GetStringValue() != "t" {
		t.Fatalf("unexpected point: %+v", point)
	}

	stub.points = []*qdrant.ScoredPoint{
		{
			Id:      qdrant.NewIDUUID(id),
			Score:   0.9,
			Payload: qdrant.NewValueMap(map[string]any{"task": "t", "result": "r"}),
		},
	}
	matches, err := index.Search(ctx, []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if stub.query.GetLimit() != 3 {
		t.Fatalf("limit not forwarded: %d", stub.query.GetLimit())
	}
	if len(matches) != 1 || matches[0].ID != id || matches[0].Metadata.Result != "r" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	if matches[0].Score < 0.89 {
		t.Fatalf("score not mapped: %f", matches[0].Score)
	}

	_ = index.Close()
	if !stub.closed {
		t.Fatalf("expected client to be closed")
	}
}

func TestQdrantSkipsCreateWhenCollectionExists(t *testing.T) {
	stub := &stubQdrant{exists: true}
	if _, err := newQdrant(context.Background(), stub, "babyagi_tasks", 8); err != nil {
		t.Fatalf("newQdrant: %v", err)
	}
	if stub.created != nil {
		t.Fatalf("collection must not be recreated")
	}
	if _, err := newQdrant(context.Background(), stub, "", 8); err == nil {
		t.Fatalf("expected error for empty collection name")
	}
}
