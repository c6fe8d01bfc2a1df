package crm

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/pkg/salesforce"
)

// fakeNotion reports every place as new unless listed in existing.
type fakeNotion struct {
	existing map[string]bool
	created  int
	updated  int
	err      error
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	filter := req.Filter.(notionapi.PropertyFilter)
	if f.existing[filter.RichText.Equals] {
		return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "page"}}}, nil
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (f *fakeNotion) CreatePage(context.Context, *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created++
	return &notionapi.Page{ID: "new"}, nil
}

func (f *fakeNotion) UpdatePage(context.Context, string, *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	f.updated++
	return &notionapi.Page{}, nil
}

// fakeSF reports every place as new.
type fakeSF struct {
	inserted int
	err      error
}

func (f *fakeSF) Query(_ context.Context, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	*out.(*[]salesforce.Lead) = nil
	return nil
}

func (f *fakeSF) InsertOne(context.Context, string, map[string]any) (string, error) {
	f.inserted++
	return "00Q", nil
}

func (f *fakeSF) InsertCollection(context.Context, string, []map[string]any) ([]salesforce.CollectionResult, error) {
	return nil, nil
}

func (f *fakeSF) UpdateOne(context.Context, string, string, map[string]any) error {
	return nil
}

func leads() []model.Business {
	return []model.Business{
		{PlaceID: "p1", Name: "A", LeadScore: 80},
		{PlaceID: "p2", Name: "B", LeadScore: 70},
	}
}

func TestPush_NoTargets(t *testing.T) {
	p := NewPusher(nil, "", nil)
	_, err := p.Push(context.Background(), leads())
	assert.Error(t, err)
}

func TestPush_NotionOnly(t *testing.T) {
	fn := &fakeNotion{existing: map[string]bool{"p2": true}}
	p := NewPusher(fn, "db", nil)

	summary, err := p.Push(context.Background(), leads())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NotionCreated)
	assert.Equal(t, 1, summary.NotionUpdated)
	assert.Equal(t, 0, summary.SalesforceCreated)
	assert.Empty(t, summary.Failed)
}

func TestPush_BothTargets(t *testing.T) {
	fn := &fakeNotion{}
	fs := &fakeSF{}
	p := NewPusher(fn, "db", fs)

	summary, err := p.Push(context.Background(), leads())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NotionCreated)
	assert.Equal(t, 2, summary.SalesforceCreated)
	assert.Equal(t, 2, fn.created)
	assert.Equal(t, 2, fs.inserted)
}

func TestPush_RecordsFailuresAndContinues(t *testing.T) {
	fn := &fakeNotion{err: assert.AnError}
	fs := &fakeSF{}
	p := NewPusher(fn, "db", fs)

	summary, err := p.Push(context.Background(), leads())
	require.NoError(t, err)
	assert.Len(t, summary.Failed, 2, "every notion upsert failed")
	assert.Equal(t, 2, summary.SalesforceCreated, "salesforce still pushed")
}
