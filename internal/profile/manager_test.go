package profile

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/jason-s-yu/wordhex/internal/models"
	"github.com/jason-s-yu/wordhex/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestEnsureCreatesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	space := storage.NewMemorySpace()
	st := storage.New(ctx, space.Open(), storage.Options{Logger: quietLogger()})

	m := NewManager(st, quietLogger())
	first := m.Ensure(ctx)
	assert.True(t, first.Valid())
	assert.Regexp(t, regexp.MustCompile(`^Player \d{4}$`), first.Name)
	assert.False(t, first.CreatedAt.IsZero())

	assert.Equal(t, first, m.Ensure(ctx))

	// A second context on the same storage sees the same identity.
	other := NewManager(storage.New(ctx, space.Open(), storage.Options{Logger: quietLogger()}), quietLogger())
	assert.Equal(t, first.ID, other.Get(ctx).ID)
}

func TestEnsureReplacesInvalidProfile(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	require.NoError(t, backend.Set(ctx, storage.DefaultProfileKey, []byte(`{"id":"p1"}`)))
	st := storage.New(ctx, backend, storage.Options{Logger: quietLogger()})

	p := NewManager(st, quietLogger()).Ensure(ctx)
	assert.NotEqual(t, "p1", p.ID)
	assert.True(t, p.Valid())
}

func TestUpdateMergesAndStamps(t *testing.T) {
	ctx := context.Background()
	st := storage.New(ctx, storage.NewMemory(), storage.Options{Logger: quietLogger()})
	m := NewManager(st, quietLogger())
	before := m.Ensure(ctx)

	name := "Nova"
	after := m.Update(ctx, models.ProfilePatch{Name: &name})
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Nova", after.Name)
	assert.False(t, after.UpdatedAt.IsZero())

	stored, ok := st.ReadProfile(ctx)
	require.True(t, ok)
	assert.Equal(t, "Nova", stored.Name)

	empty := ""
	assert.Equal(t, "Nova", m.Update(ctx, models.ProfilePatch{Name: &empty}).Name)
}

func TestUnavailableStorageKeepsProfileInProcess(t *testing.T) {
	ctx := context.Background()
	st := storage.New(ctx, nil, storage.Options{Logger: quietLogger()})
	m := NewManager(st, quietLogger())

	first := m.Ensure(ctx)
	assert.True(t, first.Valid())
	assert.Equal(t, first.ID, m.Ensure(ctx).ID)

	name := "Atlas"
	updated := m.Update(ctx, models.ProfilePatch{Name: &name})
	assert.Equal(t, "Atlas", updated.Name)
	assert.Equal(t, "Atlas", m.Get(ctx).Name)

	assert.NotEqual(t, first.ID, NewManager(st, quietLogger()).Ensure(ctx).ID)
}
