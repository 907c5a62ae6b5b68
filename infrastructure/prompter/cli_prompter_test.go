package prompter_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/infrastructure/prompter"
)

func TestCliConfirmer_ConfirmInstruction(t *testing.T) {
	req := entities.ConfirmationRequest{
		Engine: "Web",
		Instruction: entities.InstructionMetadata{
			ID:           "web-click",
			LuaName:      "Click",
			FriendlyName: "Click an element",
			Description:  "Clicks the first element matching a selector.",
		},
		Parameters: []entities.NamedValue{
			entities.Named("selector", entities.StringValue("#submit")),
		},
	}

	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantAlways bool
		wantErr    error
	}{
		{name: "Approve", input: "y\n", wantOK: true},
		{name: "Approve long form", input: " YES \n", wantOK: true},
		{name: "Approve Always", input: "always\n", wantOK: true, wantAlways: true},
		{name: "Approve Always short", input: "a\n", wantOK: true, wantAlways: true},
		{name: "Deny", input: "n\n"},
		{name: "Unrecognised answer denies", input: "maybe\n"},
		{name: "No answer", input: "", wantErr: io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			c := prompter.NewCliConfirmer(bytes.NewBufferString(tt.input), out)

			ok, always, err := c.ConfirmInstruction(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAlways, always)

			assert.Contains(t, out.String(), "Instruction: Click an element (Web.Click)")
			assert.Contains(t, out.String(), "Clicks the first element matching a selector.")
			assert.Contains(t, out.String(), `selector = STRING "#submit"`)
			assert.Contains(t, out.String(), "Run? [y/n/always]:")
		})
	}
}

func TestCliConfirmer_SharesInputAcrossPrompts(t *testing.T) {
	c := prompter.NewCliConfirmer(bytes.NewBufferString("n\ny\n"), io.Discard)
	req := entities.ConfirmationRequest{Engine: "Web"}

	ok, _, err := c.ConfirmInstruction(req)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = c.ConfirmInstruction(req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCliConfirmer_IsInteractive(t *testing.T) {
	assert.False(t, prompter.NewCliConfirmer(bytes.NewBufferString("y\n"), io.Discard).IsInteractive())
	assert.True(t, prompter.NewCliConfirmer(bytes.NewBufferString("y\n"), io.Discard).ForceInteractive().IsInteractive())
	assert.False(t, prompter.NewCliConfirmer(nil, io.Discard).ForceInteractive().IsInteractive())

	f, err := os.CreateTemp(t.TempDir(), "answers")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, prompter.NewCliConfirmer(f, io.Discard).IsInteractive(), "regular files are not terminals")
}

func TestCliConfirmer_NilInput(t *testing.T) {
	_, _, err := prompter.NewCliConfirmer(nil, io.Discard).ConfirmInstruction(entities.ConfirmationRequest{})
	assert.ErrorIs(t, err, io.EOF)
}
