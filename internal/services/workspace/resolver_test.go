package workspace

import (
	"context"
	"testing"
)

func TestResolverIdentifier(t *testing.T) {
	tests := []struct {
		name      string
		override  string
		principal *Principal
		want      string
		wantFound bool
	}{
		{
			name:      "no signals at all",
			want:      "",
			wantFound: false,
		},
		{
			name:     "override wins over principal",
			override: "acme",
			principal: &Principal{
				CurrentWorkspace: "other",
				DefaultWorkspace: "fallback",
			},
			want:      "acme",
			wantFound: true,
		},
		{
			name: "current pointer wins over default",
			principal: &Principal{
				CurrentWorkspace: "current-ws",
				DefaultWorkspace: "default-ws",
			},
			want:      "current-ws",
			wantFound: true,
		},
		{
			name: "default pointer as fallback",
			principal: &Principal{
				DefaultWorkspace: "default-ws",
			},
			want:      "default-ws",
			wantFound: true,
		},
		{
			name:      "principal with no pointers",
			principal: &Principal{Subject: "user-1"},
			want:      "",
			wantFound: false,
		},
		{
			name:      "override alone",
			override:  "42",
			want:      "42",
			wantFound: true,
		},
	}

	resolver := NewWorkspaceResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.override != "" {
				ctx = WithOverride(ctx, tt.override)
			}
			if tt.principal != nil {
				ctx = WithPrincipal(ctx, tt.principal)
			}
			got, found := resolver.Identifier(ctx)
			if got != tt.want || found != tt.wantFound {
				t.Errorf("Identifier() = (%q, %v), want (%q, %v)", got, found, tt.want, tt.wantFound)
			}
		})
	}
}

func TestInstanceResolverUsesInstancePointers(t *testing.T) {
	resolver := NewInstanceResolver()
	ctx := WithPrincipal(context.Background(), &Principal{
		CurrentWorkspace: "workspace-ptr",
		CurrentInstance:  "instance-ptr",
	})

	got, found := resolver.Identifier(ctx)
	if !found || got != "instance-ptr" {
		t.Errorf("Identifier() = (%q, %v), want (%q, true)", got, found, "instance-ptr")
	}
}
