package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfowler1994/project-archivist/pkg/types"
)

func TestDefineEntityType(t *testing.T) {
	ctx := context.Background()
	b, _ := newAttachedBackend(t)

	et, err := b.DefineEntityType(ctx, "  Task ", "things to do")
	require.NoError(t, err)
	assert.Equal(t, "Task", et.Name)
	assert.Equal(t, "things to do", et.Description)
	assert.NotEmpty(t, et.ID)
	assert.False(t, et.CreatedAt.IsZero())

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"blank name", "   ", types.ErrInvalidName},
		{"exact duplicate", "Task", types.ErrDuplicateName},
		{"duplicate after trimming", "Task  ", types.ErrDuplicateName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.DefineEntityType(ctx, tt.input, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Type names are case-sensitive.
	_, err = b.DefineEntityType(ctx, "task", "")
	assert.NoError(t, err)
}

func TestGetAndListEntityTypes(t *testing.T) {
	ctx := context.Background()
	b, _ := newAttachedBackend(t)

	for _, name := range []string{"Project", "Contact", "Meeting"} {
		_, err := b.DefineEntityType(ctx, name, "")
		require.NoError(t, err)
	}

	got, err := b.GetEntityType(ctx, "Contact")
	require.NoError(t, err)
	assert.Equal(t, "Contact", got.Name)

	_, err = b.GetEntityType(ctx, "Missing")
	assert.ErrorIs(t, err, types.ErrUnknownEntityType)

	all, err := b.ListEntityTypes(ctx)
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, et := range all {
		names[i] = et.Name
	}
	assert.Equal(t, []string{"Contact", "Meeting", "Project"}, names)
}

func TestDeleteEntityType(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, b *Backend)
		target  string
		wantErr error
	}{
		{
			name:    "unknown type",
			setup:   func(t *testing.T, b *Backend) {},
			target:  "Ghost",
			wantErr: types.ErrUnknownEntityType,
		},
		{
			name: "unused type",
			setup: func(t *testing.T, b *Backend) {
				_, err := b.DefineEntityType(ctx, "Scratch", "")
				require.NoError(t, err)
			},
			target: "Scratch",
		},
		{
			name: "type with fields",
			setup: func(t *testing.T, b *Backend) {
				_, err := b.DefineEntityType(ctx, "Task", "")
				require.NoError(t, err)
				_, err = b.DefineField(ctx, types.FieldSpec{EntityTypeName: "Task", FieldName: "Notes", FieldType: types.FieldTypeText})
				require.NoError(t, err)
			},
			target:  "Task",
			wantErr: types.ErrTypeInUse,
		},
		{
			name: "type targeted by another type's reference field",
			setup: func(t *testing.T, b *Backend) {
				_, err := b.DefineEntityType(ctx, "Person", "")
				require.NoError(t, err)
				_, err = b.DefineEntityType(ctx, "Task", "")
				require.NoError(t, err)
				_, err = b.DefineField(ctx, types.FieldSpec{
					EntityTypeName: "Task", FieldName: "Owner", FieldType: types.FieldTypeEntityReferenceList,
					Configuration: map[string]any{"targetType": "Person"},
				})
				require.NoError(t, err)
			},
			target:  "Person",
			wantErr: types.ErrTypeInUse,
		},
		{
			name: "type with entities",
			setup: func(t *testing.T, b *Backend) {
				_, err := b.DefineEntityType(ctx, "Note", "")
				require.NoError(t, err)
				_, err = b.CreateEntity(ctx, types.NewEntity{EntityTypeName: "Note", Title: "hello"})
				require.NoError(t, err)
			},
			target:  "Note",
			wantErr: types.ErrTypeInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newAttachedBackend(t)
			tt.setup(t, b)

			err := b.DeleteEntityType(ctx, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, err = b.GetEntityType(ctx, tt.target)
			assert.ErrorIs(t, err, types.ErrUnknownEntityType)
		})
	}
}

func TestRenameEntityType(t *testing.T) {
	ctx := context.Background()
	b, _ := newAttachedBackend(t)

	_, err := b.DefineEntityType(ctx, "Person", "")
	require.NoError(t, err)
	_, err = b.DefineEntityType(ctx, "Task", "")
	require.NoError(t, err)
	_, err = b.DefineField(ctx, types.FieldSpec{EntityTypeName: "Person", FieldName: "Email", FieldType: types.FieldTypeText})
	require.NoError(t, err)
	_, err = b.DefineField(ctx, types.FieldSpec{
		EntityTypeName: "Task", FieldName: "Owner", FieldType: types.FieldTypeEntityReference,
		Configuration: map[string]any{"targetType": "Person"},
	})
	require.NoError(t, err)

	ada, err := b.CreateEntity(ctx, types.NewEntity{EntityTypeName: "Person", Title: "Ada",
		CustomFieldsData: map[string]any{"Email": "ada@example.com"}})
	require.NoError(t, err)
	task, err := b.CreateEntity(ctx, types.NewEntity{EntityTypeName: "Task", Title: "Review",
		CustomFieldsData: map[string]any{"Owner": ada.ID}})
	require.NoError(t, err)

	_, err = b.RenameEntityType(ctx, "Person", "Task")
	assert.ErrorIs(t, err, types.ErrDuplicateName)
	_, err = b.RenameEntityType(ctx, "Ghost", "Spirit")
	assert.ErrorIs(t, err, types.ErrUnknownEntityType)
	_, err = b.RenameEntityType(ctx, "Person", " ")
	assert.ErrorIs(t, err, types.ErrInvalidName)

	renamed, err := b.RenameEntityType(ctx, "Person", "Contact")
	require.NoError(t, err)
	assert.Equal(t, "Contact", renamed.Name)

	_, err = b.GetEntityType(ctx, "Person")
	assert.ErrorIs(t, err, types.ErrUnknownEntityType)

	fields, err := b.ListFields(ctx, "Contact")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Contact", fields[0].EntityTypeName)

	taskFields, err := b.ListFields(ctx, "Task")
	require.NoError(t, err)
	require.Len(t, taskFields, 1)
	assert.Equal(t, types.EntityReferenceConfig{TargetType: "Contact"}, taskFields[0].Configuration)

	got, err := b.GetEntity(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contact", got.EntityTypeName)

	// The reference still resolves to the right type under the new name.
	_, err = b.UpdateEntity(ctx, types.EntityUpdate{ID: task.ID, Version: task.Version, Title: task.Title,
		CustomFieldsData: task.CustomFieldsData})
	assert.NoError(t, err)
}
