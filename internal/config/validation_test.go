package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *Definition {
	return &Definition{
		FoundationalAssets: FoundationalAssets{
			ComponentTemplates: []string{"logs-base"},
			IngestPipelines:    []string{"cheese-log-parser"},
		},
		IntegrationDefinitions: map[string]IntegrationDefinition{
			"system": {Fragment: "system-1"},
		},
		AgentPolicies: map[string]AgentPolicy{
			"Cheese App Servers": {Description: "d", Integrations: []string{"system"}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr string
	}{
		{
			name:   "valid definition",
			mutate: func(d *Definition) {},
		},
		{
			name: "duplicate component template",
			mutate: func(d *Definition) {
				d.FoundationalAssets.ComponentTemplates = []string{"a", "a"}
			},
			wantErr: "duplicate component template",
		},
		{
			name: "duplicate ingest pipeline",
			mutate: func(d *Definition) {
				d.FoundationalAssets.IngestPipelines = []string{"p", "p"}
			},
			wantErr: "duplicate ingest pipeline",
		},
		{
			name: "empty pipeline name",
			mutate: func(d *Definition) {
				d.FoundationalAssets.IngestPipelines = []string{""}
			},
			wantErr: "empty pipeline name",
		},
		{
			name: "bundle without fragment",
			mutate: func(d *Definition) {
				d.IntegrationDefinitions["broken"] = IntegrationDefinition{}
			},
			wantErr: "missing a fragment",
		},
		{
			name: "policy without integrations",
			mutate: func(d *Definition) {
				d.AgentPolicies["Empty"] = AgentPolicy{Description: "d"}
			},
			wantErr: "no integrations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := Validate(def)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
