package rename

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		changed bool
	}{
		{"exact match", "app", "service", true},
		{"suffix form preserved", "app/jdk=6", "service/jdk=6", true},
		{"deep suffix preserved", "app/os=linux,jdk=7", "service/os=linux,jdk=7", true},
		{"substring untouched", "app2", "app2", false},
		{"substring with suffix untouched", "appapp/x", "appapp/x", false},
		{"unrelated untouched", "other", "other", false},
		{"placeholder untouched", "$UPSTREAM", "$UPSTREAM", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Rewrite(tt.ref, "app", "service")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

type memBinding struct {
	name string
}

func (b *memBinding) ProjectName() string        { return b.name }
func (b *memBinding) SetProjectName(name string) { b.name = name }

type memSource struct {
	bindings []Binding
	saved    []string
	listErr  error
	saveErr  map[string]error
}

func (s *memSource) Bindings() ([]Binding, error) {
	return s.bindings, s.listErr
}

func (s *memSource) Save(b Binding) error {
	if err := s.saveErr[b.ProjectName()]; err != nil {
		return err
	}
	s.saved = append(s.saved, b.ProjectName())
	return nil
}

func TestTaskRunSavesOnlyTouched(t *testing.T) {
	src := &memSource{bindings: []Binding{
		&memBinding{name: "app"},
		&memBinding{name: "app/x"},
		&memBinding{name: "appx/x"},
		&memBinding{name: "other"},
	}}

	task := &Task{OldName: "app", NewName: "svc"}
	touched, err := task.Run(src)
	require.NoError(t, err)
	assert.Equal(t, 2, touched)
	assert.Equal(t, []string{"svc", "svc/x"}, src.saved)

	// Untouched bindings were never rewritten.
	assert.Equal(t, "appx/x", src.bindings[2].ProjectName())
	assert.Equal(t, "other", src.bindings[3].ProjectName())
}

func TestTaskRunRoundTrip(t *testing.T) {
	src := &memSource{bindings: []Binding{
		&memBinding{name: "a"},
		&memBinding{name: "a/f=1"},
	}}

	_, err := (&Task{OldName: "a", NewName: "b"}).Run(src)
	require.NoError(t, err)
	_, err = (&Task{OldName: "b", NewName: "a"}).Run(src)
	require.NoError(t, err)

	assert.Equal(t, "a", src.bindings[0].ProjectName())
	assert.Equal(t, "a/f=1", src.bindings[1].ProjectName())
}

func TestTaskRunBestEffort(t *testing.T) {
	saveErr := errors.New("disk full")
	src := &memSource{
		bindings: []Binding{
			&memBinding{name: "app"},
			&memBinding{name: "app/x"},
		},
		saveErr: map[string]error{"svc": saveErr},
	}

	touched, err := (&Task{OldName: "app", NewName: "svc"}).Run(src)
	require.ErrorIs(t, err, saveErr)
	assert.Equal(t, 1, touched)
	assert.Equal(t, []string{"svc/x"}, src.saved)
}

func TestTaskRunValidation(t *testing.T) {
	src := &memSource{}
	_, err := (&Task{OldName: "", NewName: "b"}).Run(src)
	require.ErrorIs(t, err, ErrEmptyName)
	_, err = (&Task{OldName: "a", NewName: ""}).Run(src)
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestTaskRunEnumerateFailure(t *testing.T) {
	listErr := errors.New("corrupt store")
	src := &memSource{listErr: listErr}
	_, err := (&Task{OldName: "a", NewName: "b"}).Run(src)
	require.ErrorIs(t, err, listErr)
}
