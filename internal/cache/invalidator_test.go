package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDeleter tracks which keys have been removed, mimicking DEL
// semantics: deleting an absent key succeeds.
type recordingDeleter struct {
	removed map[string]bool
	calls   int
	err     error
}

func newRecordingDeleter() *recordingDeleter {
	return &recordingDeleter{removed: make(map[string]bool)}
}

func (d *recordingDeleter) Delete(_ context.Context, keys ...string) error {
	d.calls++
	if d.err != nil {
		return d.err
	}
	for _, k := range keys {
		d.removed[k] = true
	}
	return nil
}

func TestInvalidate_AllPages(t *testing.T) {
	del := newRecordingDeleter()
	inv := NewInvalidator(del, nil)

	inv.Invalidate(context.Background(), Refresh{
		ProductSlug:  "phone-x",
		CategorySlug: "phones",
		Homepage:     true,
	})

	assert.True(t, del.removed["page:product:phone-x"])
	assert.True(t, del.removed["page:category:phones"])
	assert.True(t, del.removed["page:home"])
}

func TestInvalidate_ProductOnly(t *testing.T) {
	del := newRecordingDeleter()
	inv := NewInvalidator(del, nil)

	inv.Invalidate(context.Background(), Refresh{ProductSlug: "phone-x"})

	require.Len(t, del.removed, 1)
	assert.True(t, del.removed["page:product:phone-x"])
}

func TestInvalidate_Idempotent(t *testing.T) {
	del := newRecordingDeleter()
	inv := NewInvalidator(del, nil)

	r := Refresh{ProductSlug: "phone-x", CategorySlug: "phones", Homepage: true}
	inv.Invalidate(context.Background(), r)
	once := make(map[string]bool, len(del.removed))
	for k := range del.removed {
		once[k] = true
	}

	inv.Invalidate(context.Background(), r)
	assert.Equal(t, once, del.removed, "second invalidation must not change the end state")
}

func TestInvalidate_EmptyRefreshIsNoop(t *testing.T) {
	del := newRecordingDeleter()
	inv := NewInvalidator(del, nil)

	inv.Invalidate(context.Background(), Refresh{})
	assert.Zero(t, del.calls, "no deleter call for an empty refresh")
}

func TestInvalidate_DeleterFailureIsSwallowed(t *testing.T) {
	del := newRecordingDeleter()
	del.err = assert.AnError
	inv := NewInvalidator(del, nil)

	// Post-commit invalidation is best effort: no panic, no error surfaced.
	inv.Invalidate(context.Background(), Refresh{Homepage: true})
	assert.Equal(t, 1, del.calls)
}

func TestKeys(t *testing.T) {
	assert.Empty(t, Keys(Refresh{}))
	assert.Equal(t, []string{"page:home"}, Keys(Refresh{Homepage: true}))
	assert.Equal(t,
		[]string{"page:product:a", "page:category:b"},
		Keys(Refresh{ProductSlug: "a", CategorySlug: "b"}),
	)
}
