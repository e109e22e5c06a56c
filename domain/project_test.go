package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Valid123Pass!", wantErr: false},
		{name: "too short", password: "short1!A", wantErr: true},
		{name: "eleven characters", password: "Abcdefgh1!x", wantErr: true},
		{name: "no uppercase", password: "alllowercase123!", wantErr: true},
		{name: "no lowercase", password: "ALLUPPERCASE123!", wantErr: true},
		{name: "no digit", password: "NoDigitsHere!!", wantErr: true},
		{name: "no symbol", password: "NoSymbols12345", wantErr: true},
		{name: "symbol outside policy", password: "Underscore_123a", wantErr: true},
		{name: "original default", password: "Chien2Sang<3", wantErr: false},
		{name: "multi-byte characters count once", password: "Aa1!éééé", wantErr: true},
		{name: "twelve characters with accents", password: "Aa1!éééééééé", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPassword)
				assert.Equal(t, KindInvalidPassword, Kind(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 50; i++ {
		password, err := GeneratePassword(16)
		require.NoError(t, err)
		assert.Len(t, password, 16)
		assert.NoError(t, ValidatePassword(password))
	}

	short, err := GeneratePassword(4)
	require.NoError(t, err)
	assert.Len(t, short, MinPasswordLength)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "corp", wantErr: false},
		{name: "mixed case with dash", input: "Corp-Lab_2", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace", input: " corp", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProject)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPortsValidate(t *testing.T) {
	tests := []struct {
		name    string
		ports   Ports
		wantErr bool
	}{
		{name: "defaults", ports: DefaultPorts(), wantErr: false},
		{name: "zero port", ports: Ports{Bolt: 0, Neo4j: 7474, Web: 8080}, wantErr: true},
		{name: "too large", ports: Ports{Bolt: 7687, Neo4j: 70000, Web: 8080}, wantErr: true},
		{name: "duplicate", ports: Ports{Bolt: 7687, Neo4j: 8080, Web: 8080}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPorts)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPortsOverlaps(t *testing.T) {
	a := Ports{Bolt: 7687, Neo4j: 7474, Web: 8080}
	b := Ports{Bolt: 7688, Neo4j: 7474, Web: 8081}
	c := Ports{Bolt: 7689, Neo4j: 7475, Web: 8082}

	assert.Equal(t, []int{7474}, a.Overlaps(b))
	assert.Empty(t, a.Overlaps(c))
}

func TestProjectPaths(t *testing.T) {
	p := NewProject("Corp Lab", "/data/projects", DefaultPorts(), "Valid123Pass!", 90*time.Second, false)

	assert.Equal(t, StateUnconfigured, p.State)
	assert.Equal(t, "/data/projects/Corp Lab", p.Dir())
	assert.Equal(t, "/data/projects/Corp Lab/docker-compose.yml", p.ComposePath())
	assert.Equal(t, "/data/projects/Corp Lab/bloodhound.config.json", p.ServiceConfigPath())
	assert.Equal(t, "/data/projects/Corp Lab/runtime.log", p.LogPath())
	assert.Equal(t, "/data/projects/Corp Lab/state.json", p.StatePath())
	assert.Equal(t, "http://localhost:8080", p.BaseURL())
	assert.Equal(t, "hound-corp-lab", p.ComposeName())
}

func TestSameRuntimeConfig(t *testing.T) {
	a := NewProject("a", "/d", DefaultPorts(), "x", time.Second, false)
	b := NewProject("a", "/d", DefaultPorts(), "y", time.Minute, false)
	c := NewProject("a", "/d", DefaultPorts(), "x", time.Second, true)

	assert.True(t, a.SameRuntimeConfig(b))
	assert.False(t, a.SameRuntimeConfig(c))
}

func TestLifecycleStateText(t *testing.T) {
	for state := StateUnconfigured; state <= StateDeleted; state++ {
		text, err := state.MarshalText()
		require.NoError(t, err)

		var parsed LifecycleState
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, state, parsed)
	}

	var s LifecycleState
	assert.Error(t, s.UnmarshalText([]byte("booting")))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("wrapped: %w", ErrProjectNotFound), KindProjectNotFound},
		{&DirectoryCreateError{Path: "/x", Err: errors.New("denied")}, KindDirectoryCreate},
		{fmt.Errorf("start: %w", &RuntimeLaunchError{Operation: "up", Err: errors.New("boom")}), KindRuntimeLaunch},
		{&AuthenticationFailedError{StatusCode: 401}, KindAuthenticationFailed},
		{&UploadFailedError{File: "a.json", Err: errors.New("reset")}, KindUploadFailed},
		{&IngestFailedError{BatchID: 3, Status: "Failed"}, KindIngestFailed},
		{&PortConflictError{Project: "other", Ports: []int{8080}}, KindPortConflict},
		{&ClearFailedError{StatusCode: 403}, KindClearFailed},
		{&FeatureToggleWarning{Feature: "clear_graph_data"}, KindFeatureToggleWarning},
		{ErrBootstrapTimeout, KindBootstrapTimeout},
		{ErrProjectLocked, KindProjectLocked},
		{errors.New("anything else"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestFormatErrorForUser(t *testing.T) {
	assert.Empty(t, FormatErrorForUser(nil))
	assert.Contains(t, FormatErrorForUser(ErrInvalidPassword), "at least 12 characters")
	assert.Contains(t, FormatErrorForUser(ErrProjectNotFound), "hound list")
	assert.Empty(t, FormatErrorForUser(errors.New("unexpected")))
}
