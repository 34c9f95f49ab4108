package app

import (
    "bufio"
    "errors"
    "fmt"
    "os"
    "strings"
)

// LoadEnvFiles loads dotenv files of KEY=VALUE pairs into the process
// environment. Later files override earlier ones; variables already set in
// the real environment are kept. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
    preset := make(map[string]bool)
    for _, kv := range os.Environ() {
        if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
            preset[k] = true
        }
    }
    for _, p := range paths {
        if strings.TrimSpace(p) == "" {
            continue
        }
        if err := loadEnvFile(p, preset); err != nil {
            if errors.Is(err, os.ErrNotExist) {
                continue
            }
            return fmt.Errorf("env file %s: %w", p, err)
        }
    }
    return nil
}

func loadEnvFile(path string, preset map[string]bool) error {
    f, err := os.Open(path)
    if err != nil {
        return err
    }
    defer f.Close()

    scanner := bufio.NewScanner(f)
    for scanner.Scan() {
        line := strings.TrimSpace(scanner.Text())
        if line == "" || strings.HasPrefix(line, "#") {
            continue
        }
        line = strings.TrimPrefix(line, "export ")
        key, val, ok := strings.Cut(line, "=")
        key = strings.TrimSpace(key)
        if !ok || key == "" || preset[key] {
            continue
        }
        val = strings.TrimSpace(val)
        if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
            val = val[1 : len(val)-1]
        } else if i := strings.Index(val, " #"); i >= 0 {
            val = strings.TrimSpace(val[:i])
        }
        if err := os.Setenv(key, val); err != nil {
            return err
        }
    }
    return scanner.Err()
}
