package suite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/startstop/internal/faults"
)

const sampleSuite = `
name = "quarkus"

[platform]
graceful_signals = true
native = false

[defaults]
probe_attempts = 5
probe_interval = "500ms"

[markers.build]
forbidden = ["Exception", "ERROR"]

[markers.run]
required = ["started in"]
forbidden = ["Exception", "ERROR"]

[apps.jax-rs-minimal]
dir = "app-jax-rs-minimal"
whitelist = ["WARN.*io.netty"]

[[apps.jax-rs-minimal.probes]]
url = "http://localhost:8080/"
content = "Hello from a simple JAX-RS app."

[[apps.jax-rs-minimal.probes]]
url = "http://localhost:8080/data/hello"
content = "Hello World"

[apps.full-microprofile]
dir = "/opt/apps/full-microprofile"

[[apps.full-microprofile.probes]]
url = "http://localhost:8080/health"
content = "UP"

[modes.jvm]
build = "mvn clean compile quarkus:build"
run = "java -jar target/quarkus-app/quarkus-run.jar"

[modes.native]
native = true
build = "mvn clean compile package -Pnative"
run = "./target/quarkus-runner"
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quarkus.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSuite(t, sampleSuite)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Name != "quarkus" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Platform.Native {
		t.Error("Platform.Native should be false from file")
	}
	if !s.Platform.GracefulSignals {
		t.Error("Platform.GracefulSignals should be true")
	}

	app := s.Apps["jax-rs-minimal"]
	if app.Name != "jax-rs-minimal" {
		t.Errorf("app name = %q", app.Name)
	}
	if want := filepath.Join(filepath.Dir(path), "app-jax-rs-minimal"); app.Dir != want {
		t.Errorf("app dir = %q, want %q", app.Dir, want)
	}
	if len(app.Probes) != 2 || app.Probes[1].URL != "http://localhost:8080/data/hello" {
		t.Errorf("probes = %+v", app.Probes)
	}
	if got := s.Apps["full-microprofile"].Dir; got != "/opt/apps/full-microprofile" {
		t.Errorf("absolute dir rewritten: %q", got)
	}

	if !s.Modes["native"].Native || s.Modes["native"].Name != "native" {
		t.Errorf("native mode = %+v", s.Modes["native"])
	}

	if s.Defaults.ProbeAttempts != 5 {
		t.Errorf("ProbeAttempts = %d", s.Defaults.ProbeAttempts)
	}
	if s.Defaults.ProbeInterval.Std() != 500*time.Millisecond {
		t.Errorf("ProbeInterval = %v", s.Defaults.ProbeInterval.Std())
	}
	if s.Defaults.BuildTimeout.Std() != DefaultBuildTimeout {
		t.Errorf("BuildTimeout = %v, want default", s.Defaults.BuildTimeout.Std())
	}
	if s.Defaults.PortTimeout.Std() != DefaultPortTimeout {
		t.Errorf("PortTimeout = %v, want default", s.Defaults.PortTimeout.Std())
	}
	if len(s.Defaults.Clean) != len(DefaultClean) {
		t.Errorf("Clean = %v", s.Defaults.Clean)
	}
	if got := s.Markers.Run.Required; len(got) != 1 || got[0] != "started in" {
		t.Errorf("run required markers = %v", got)
	}
}

func TestLoadNameFromFile(t *testing.T) {
	content := strings.Replace(sampleSuite, `name = "quarkus"`, "", 1)
	s, err := Load(writeSuite(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "quarkus" {
		t.Errorf("Name = %q, want file stem", s.Name)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[apps.x\n"},
		{"no apps", "[modes.jvm]\nbuild = \"b\"\nrun = \"r\"\n"},
		{"no modes", "[apps.a]\ndir = \"a\"\n[[apps.a.probes]]\nurl = \"http://localhost:8080/\"\n"},
		{"no probes", "[apps.a]\ndir = \"a\"\n[modes.jvm]\nbuild = \"b\"\nrun = \"r\"\n"},
		{"bad url", "[apps.a]\ndir = \"a\"\n[[apps.a.probes]]\nurl = \"localhost:8080\"\n[modes.jvm]\nbuild = \"b\"\nrun = \"r\"\n"},
		{"missing run", "[apps.a]\ndir = \"a\"\n[[apps.a.probes]]\nurl = \"http://localhost:8080/\"\n[modes.jvm]\nbuild = \"b\"\n"},
		{"bad duration", "[defaults]\nprobe_interval = \"often\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSuite(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !faults.HasCode(err, faults.CodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	s, err := Load(writeSuite(t, sampleSuite))
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.Select(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"full-microprofile/jvm",
		"full-microprofile/native",
		"jax-rs-minimal/jvm",
		"jax-rs-minimal/native",
	}
	if len(all) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(all), len(want))
	}
	for i, p := range all {
		if p.Name() != want[i] {
			t.Errorf("pair %d = %s, want %s", i, p.Name(), want[i])
		}
	}

	one, err := s.Select([]string{"jax-rs-minimal"}, []string{"jvm"})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].Name() != "jax-rs-minimal/jvm" {
		t.Errorf("filtered = %v", one)
	}

	if _, err := s.Select([]string{"nope"}, nil); err == nil {
		t.Error("expected error for unknown app")
	}
	if _, err := s.Select(nil, []string{"wasm"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}
