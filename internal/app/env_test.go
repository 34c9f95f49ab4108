package app

import (
    "os"
    "path/filepath"
    "testing"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
    t.Setenv("FOO", "")
    t.Setenv("BAR", "")

    dir := t.TempDir()
    envPath := filepath.Join(dir, ".env.test")
    content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\n"
    if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
        t.Fatalf("write dotenv: %v", err)
    }

    if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
        t.Fatalf("LoadEnvFiles error: %v", err)
    }
    if got := os.Getenv("FOO"); got != "alpha" {
        t.Fatalf("FOO=%q, want alpha", got)
    }
    if got := os.Getenv("BAR"); got != "beta gamma" {
        t.Fatalf("BAR=%q, want beta gamma", got)
    }
}

// Later files override earlier ones; the real environment wins over both.
func TestLoadEnvFiles_Precedence(t *testing.T) {
    t.Setenv("K", "")
    t.Setenv("KEEP", "from-env")
    dir := t.TempDir()
    a := filepath.Join(dir, ".env.a")
    b := filepath.Join(dir, ".env.b")
    if err := os.WriteFile(a, []byte("K=first\nKEEP=file\n"), 0o600); err != nil { t.Fatalf("write a: %v", err) }
    if err := os.WriteFile(b, []byte("K=second # trailing comment\n"), 0o600); err != nil { t.Fatalf("write b: %v", err) }

    if err := LoadEnvFiles(a, b); err != nil {
        t.Fatalf("LoadEnvFiles error: %v", err)
    }
    if got := os.Getenv("K"); got != "second" {
        t.Fatalf("override order failed: got %q, want second", got)
    }
    if got := os.Getenv("KEEP"); got != "from-env" {
        t.Fatalf("KEEP=%q, want from-env", got)
    }
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
    t.Setenv("SMSBACKUP_TYPE", "VCF")
    t.Setenv("SMSBACKUP_INPUT", "/backups")
    t.Setenv("SMSBACKUP_OUTPUT", "/out")
    t.Setenv("SMSBACKUP_STRICT", "yes")
    t.Setenv("SMSBACKUP_NO_VIDEOS", "1")
    t.Setenv("SMSBACKUP_CALLS_DEDUP", "off")
    t.Setenv("VERBOSE", "true")

    var cfg Config
    ApplyEnvToConfig(&cfg)
    if cfg.Type != TypeVCF || cfg.InputPath != "/backups" || cfg.OutputDir != "/out" {
        t.Fatalf("unexpected paths: %+v", cfg)
    }
    if !cfg.Strict || !cfg.NoVideos || cfg.CallsDedup || !cfg.Verbose {
        t.Fatalf("unexpected flags: %+v", cfg)
    }
}

// Values already set, as from flags, are not replaced by env.
func TestApplyEnvToConfig_FlagsWin(t *testing.T) {
    t.Setenv("SMSBACKUP_TYPE", "calls")
    t.Setenv("SMSBACKUP_OUTPUT", "/env-out")

    cfg := Config{Type: TypeSMS, OutputDir: "/flag-out"}
    ApplyEnvToConfig(&cfg)
    if cfg.Type != TypeSMS || cfg.OutputDir != "/flag-out" {
        t.Fatalf("env overrode flags: %+v", cfg)
    }
}
