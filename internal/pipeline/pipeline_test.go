package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docrag-go/internal/prompt"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/store"
)

// fakeRetriever returns canned documents and records the requested k.
type fakeRetriever struct {
	docs  []rag.Document
	err   error
	gotK  int
	gotQ  string
	calls int
}

func (f *fakeRetriever) SimilaritySearchWithScore(_ context.Context, query string, topK int) ([]rag.Document, error) {
	f.calls++
	f.gotQ = query
	f.gotK = topK
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > topK {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

// fakeModel returns a canned reply and records the prompt it was sent.
type fakeModel struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (f *fakeModel) Invoke(_ context.Context, p string) (string, error) {
	f.calls++
	f.prompt = p
	return f.reply, f.err
}

// recordingHistory captures recorded runs.
type recordingHistory struct {
	runs []store.Run
	err  error
}

func (h *recordingHistory) Record(_ context.Context, run *store.Run) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	h.runs = append(h.runs, *run)
	return "run-1", nil
}

func (h *recordingHistory) Recent(context.Context, int) ([]store.Run, error) { return h.runs, nil }
func (h *recordingHistory) Close() error { return nil }

func doc(id, content string, score float32) rag.Document {
	md := map[string]string{}
	if id != "" {
		md[rag.MetadataID] = id
	}
	return rag.Document{Content: content, Metadata: md, Score: score}
}

func threeDocs() []rag.Document {
	return []rag.Document{
		doc("doc1", "alpha", 0.9),
		doc("doc2", "beta", 0.7),
		doc("doc3", "gamma", 0.5),
	}
}

func TestQuery_EndToEnd(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: threeDocs()}
	model := &fakeModel{reply: "42"}
	var out bytes.Buffer

	p, err := New(&Config{Retriever: ret, Model: model, Out: &out})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "X")
	require.NoError(t, err)

	assert.Equal(t, "X", ret.gotQ)
	assert.Equal(t, 5, ret.gotK)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, []string{"doc1", "doc2", "doc3"}, resp.Sources)
	assert.Equal(t, "42", resp.Text)

	wantPrompt, err := prompt.RenderQuery(prompt.QueryTemplate, "alphan\n\\---\n\nbetan\n\\---\n\ngamma", "X")
	require.NoError(t, err)
	assert.Equal(t, wantPrompt, resp.Prompt)
	assert.Equal(t, wantPrompt, model.prompt)

	assert.Equal(t, "Response: 42\nSources: doc1\ndoc2\ndoc3", FormatResponse(resp))
	assert.Equal(t,
		"Querying RAG with: X\n"+wantPrompt+"\n"+"Response: 42\nSources: doc1\ndoc2\ndoc3\n",
		out.String())
}

func TestQuery_MissingIDKeepsRank(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{
		doc("doc1", "a", 0.9),
		doc("", "b", 0.8),
		{Content: "c", Score: 0.1},
	}}
	p, err := New(&Config{Retriever: ret, Model: &fakeModel{reply: "ok"}})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, resp.Sources, len(resp.Results))
	assert.Equal(t, []string{"doc1", "", ""}, resp.Sources)
	assert.Equal(t, "Response: ok\nSources: doc1\n\n", FormatResponse(resp))
}

func TestQuery_NoResults(t *testing.T) {
	t.Parallel()

	p, err := New(&Config{Retriever: &fakeRetriever{}, Model: &fakeModel{reply: "unknown"}})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "Response: unknown\nSources: ", FormatResponse(resp))
}

func TestQuery_CustomTopK(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: threeDocs()}
	p, err := New(&Config{Retriever: ret, Model: &fakeModel{}, TopK: 2})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, ret.gotK)
	assert.Equal(t, []string{"doc1", "doc2"}, resp.Sources)
}

func TestQuery_SearchFailureAborts(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{err: fmt.Errorf("open collection: %w", rag.ErrStoreAccess)}
	model := &fakeModel{reply: "never"}
	hist := &recordingHistory{}
	var out bytes.Buffer

	p, err := New(&Config{Retriever: ret, Model: model, Out: &out, History: hist})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, rag.ErrStoreAccess)
	assert.Zero(t, model.calls)
	assert.Empty(t, hist.runs)
	assert.NotContains(t, out.String(), "Response:")
}

func TestQuery_ModelFailureAborts(t *testing.T) {
	t.Parallel()

	model := &fakeModel{err: fmt.Errorf("dial: %w", rag.ErrProviderCommunication)}
	hist := &recordingHistory{}
	p, err := New(&Config{Retriever: &fakeRetriever{docs: threeDocs()}, Model: model, History: hist})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, rag.ErrProviderCommunication)
	assert.Contains(t, err.Error(), "prompt_built")
	assert.Empty(t, hist.runs)
}

func TestQuery_RecordsHistory(t *testing.T) {
	t.Parallel()

	hist := &recordingHistory{}
	p, err := New(&Config{Retriever: &fakeRetriever{docs: threeDocs()}, Model: &fakeModel{reply: "r"}, History: hist})
	require.NoError(t, err)

	_, err = p.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, hist.runs, 1)
	assert.Equal(t, store.KindQuery, hist.runs[0].Kind)
	assert.Equal(t, []string{"doc1", "doc2", "doc3"}, hist.runs[0].Sources)
}

func TestQuery_HistoryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	hist := &recordingHistory{err: errors.New("disk full")}
	p, err := New(&Config{Retriever: &fakeRetriever{docs: threeDocs()}, Model: &fakeModel{reply: "r"}, History: hist})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "r", resp.Text)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{Model: &fakeModel{}})
	assert.Error(t, err)
	_, err = New(&Config{Retriever: &fakeRetriever{}})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "start", StateStart.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "state(99)", State(99).String())
}
