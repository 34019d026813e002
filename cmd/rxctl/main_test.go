package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/service/refill"
	"github.com/jwalitptl/rx-scheduler/pkg/auth"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPlanPrintsTable(t *testing.T) {
	out, err := run(t, "plan", "--start", "2024-03-04", "--end", "2024-03-24", "--dosage", "2", "--package-size", "20")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"1", "2024-03-04", "2024-03-04", "2024-03-11"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "2024-03-14", "2024-03-07", "2024-03-21"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"3", "2024-03-24", "2024-03-17", "2024-03-31"}, strings.Fields(lines[3]))
}

func TestPlanPrintsJSON(t *testing.T) {
	out, err := run(t, "plan", "--start", "2024-01-01", "--end", "2024-01-30", "--dosage", "1.5", "--package-size", "20", "--json")
	require.NoError(t, err)

	var windows []refill.Window
	require.NoError(t, json.Unmarshal([]byte(out), &windows))
	require.Len(t, windows, 3)
	assert.Equal(t, "2024-01-14", windows[1].DueDate.String())
	assert.Equal(t, "2024-01-27", windows[2].DueDate.String())
}

func TestPlanRejectsBadInput(t *testing.T) {
	_, err := run(t, "plan", "--start", "2024-03-10", "--end", "2024-03-01", "--dosage", "1", "--package-size", "10")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = run(t, "plan", "--start", "03/10/2024", "--end", "2024-03-01", "--dosage", "1", "--package-size", "10")
	assert.ErrorContains(t, err, "--start")

	_, err = run(t, "plan", "--start", "2024-03-01")
	assert.Error(t, err)
}

func TestTokenIssuesValidToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("jwt:\n  secret: s3cret\n"), 0o600))

	id := uuid.New()
	out, err := run(t, "token", "--config", path, "--role", "doctor", "--id", id.String())
	require.NoError(t, err)

	actor, err := auth.NewJWTService("s3cret", "rx-scheduler").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, model.Actor{ID: id, Role: model.RoleDoctor}, actor)
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	_, err := run(t, "token", "--role", "nurse", "--id", uuid.NewString())
	assert.ErrorContains(t, err, "unknown role")
}

func TestPrintEvents(t *testing.T) {
	messages := make(chan []byte, 2)
	messages <- []byte("not json")
	messages <- []byte(`{"id":"1","type":"appointment.booked","aggregate_id":"a1","occurred_at":"2024-03-04T08:00:00Z","payload":{"k":1}}`)
	close(messages)

	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	require.NoError(t, printEvents(context.Background(), cmd, messages))
	assert.Equal(t, "2024-03-04T08:00:00Z appointment.booked a1 {\"k\":1}\n", out.String())
	assert.Contains(t, errOut.String(), "skipping malformed message")
}
