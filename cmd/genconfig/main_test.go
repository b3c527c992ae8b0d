package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/modwatch/internal/config"
)

// ///////////////////////////////////////////////
// parseSectionPath Tests
// ///////////////////////////////////////////////

func TestParseSectionPath(t *testing.T) {
	tests := []struct {
		name    string
		section string
		want    []string
	}{
		{"single segment", "display", []string{"display"}},
		{"two segments", "behavior.poll", []string{"behavior", "poll"}},
		{"three segments", "a.b.c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSectionPath(tt.section)
			if len(got) != len(tt.want) {
				t.Fatalf("parseSectionPath(%q) returned %d segments, want %d", tt.section, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseSectionPath(%q)[%d] = %q, want %q", tt.section, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// ///////////////////////////////////////////////
// sectionName Tests
// ///////////////////////////////////////////////

func TestSectionName(t *testing.T) {
	tests := []struct {
		name    string
		section string
		want    string
	}{
		{"single segment", "display", "Display"},
		{"last of two", "sources.feeds", "Feeds"},
		{"last of three", "a.b.metrics", "Metrics"},
		{"already capitalized", "Display", "Display"},
		{"single char", "a", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sectionName(tt.section)
			if got != tt.want {
				t.Errorf("sectionName(%q) = %q, want %q", tt.section, got, tt.want)
			}
		})
	}
}

func TestSectionNameEmpty(t *testing.T) {
	got := sectionName("")
	if got != "" {
		t.Errorf("sectionName(%q) = %q, want empty string", "", got)
	}
}

// ///////////////////////////////////////////////
// injectOmitted Tests
// ///////////////////////////////////////////////

func TestInjectOmittedNoSection(t *testing.T) {
	// When sectionStack is empty, injectOmitted should be a no-op.
	var out []string
	emitted := map[string]bool{}
	injectOmitted(&out, nil, emitted)
	if len(out) != 0 {
		t.Errorf("injectOmitted with nil sectionStack produced %d lines, want 0", len(out))
	}
}

func TestInjectOmittedAddsMissingKeys(t *testing.T) {
	var out []string
	emitted := map[string]bool{"metrics.listen": false}
	injectOmitted(&out, []string{"metrics"}, emitted)

	joined := strings.Join(out, "\n")
	if !strings.Contains(joined, "# listen = \"127.0.0.1:9464\"") {
		t.Errorf("expected commented alternative for metrics.listen, got:\n%s", joined)
	}
	if !emitted["metrics.listen"] {
		t.Error("injected key should be marked emitted")
	}
}

// ///////////////////////////////////////////////
// render Tests
// ///////////////////////////////////////////////

func TestRenderRoundTrip(t *testing.T) {
	want := config.ExampleConfig()
	out, err := render(want)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	got := &config.Config{}
	md, err := toml.Decode(out, got)
	if err != nil {
		t.Fatalf("rendered config does not parse: %v\n%s", err, out)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		t.Errorf("undecoded keys: %v", undecoded)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestRenderDocumentsEverySection(t *testing.T) {
	out, err := render(config.ExampleConfig())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.HasPrefix(out, "# ///////////////////////////////////////////////\n# modwatch Configuration") {
		t.Errorf("missing header:\n%s", out[:min(len(out), 200)])
	}
	for _, section := range []string{"webhook", "sources", "display", "behavior", "moderators", "metrics", "log"} {
		if !strings.Contains(out, "\n["+section+"]\n") {
			t.Errorf("missing section [%s]", section)
		}
		if !strings.Contains(out, "# ///// "+sectionName(section)+" /////") {
			t.Errorf("missing banner for %s", section)
		}
	}
	for _, e := range config.EnvDocs {
		if !strings.Contains(out, e) {
			t.Errorf("missing env doc %q", e)
		}
	}
	if !strings.Contains(out, "# Treat it like a password.") {
		t.Error("multi-line comments should be split into # lines")
	}
}
