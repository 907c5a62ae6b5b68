package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
	"github.com/testangel/testangel-sdk/infrastructure/parser"
)

func TestYamlConfigParser_Parse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		strict  bool
		want    *entities.HostConfig
		wantErr string
	}{
		{
			name: "full",
			input: `
engine_dir: /opt/testangel/engines
accepted_ipc_versions: [3, 4]
log_level: debug
approvals_file: /tmp/approvals.yaml
disable_memoization: true
`,
			want: &entities.HostConfig{
				EngineDir:           "/opt/testangel/engines",
				AcceptedIPCVersions: []uint32{3, 4},
				LogLevel:            "debug",
				ApprovalsFile:       "/tmp/approvals.yaml",
				DisableMemoization:  true,
			},
		},
		{
			name:  "partial",
			input: "engine_dir: ./engines\n",
			want:  &entities.HostConfig{EngineDir: "./engines"},
		},
		{
			name:  "empty",
			input: "",
			want:  &entities.HostConfig{},
		},
		{
			name:    "malformed",
			input:   "engine_dir: [",
			wantErr: "failed to parse host config",
		},
		{
			name:    "wrong type",
			input:   "accepted_ipc_versions: three\n",
			wantErr: "failed to parse host config",
		},
		{
			name:  "unknown key is ignored",
			input: "engine_dir: x\nplugins: y\n",
			want:  &entities.HostConfig{EngineDir: "x"},
		},
		{
			name:    "unknown key is rejected when strict",
			input:   "engine_dir: x\nplugins: y\n",
			strict:  true,
			wantErr: "field plugins not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []parser.YamlOption
			if tt.strict {
				opts = append(opts, parser.WithKnownFields())
			}
			got, err := parser.NewYamlConfigParser(opts...).Parse([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
