package app

import (
    "os"
    "strings"
)

const envPrefix = "SMSBACKUP_"

// ApplyEnvToConfig populates unset fields of cfg from SMSBACKUP_* environment
// variables. Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
    if cfg == nil { return }

    setString := func(dst *string, key string) {
        if strings.TrimSpace(*dst) != "" { return }
        *dst = strings.TrimSpace(os.Getenv(envPrefix + key))
    }
    setString(&cfg.Type, "TYPE")
    setString(&cfg.InputPath, "INPUT")
    setString(&cfg.OutputDir, "OUTPUT")
    cfg.Type = strings.ToLower(cfg.Type)

    setBool := func(dst *bool, envKey string) {
        if *dst { return }
        if s := strings.ToLower(strings.TrimSpace(os.Getenv(envKey))); s != "" {
            if s == "1" || s == "true" || s == "yes" || s == "on" {
                *dst = true
            }
        }
    }
    setBool(&cfg.NoImages, envPrefix+"NO_IMAGES")
    setBool(&cfg.NoVideos, envPrefix+"NO_VIDEOS")
    setBool(&cfg.NoAudio, envPrefix+"NO_AUDIO")
    setBool(&cfg.NoPDFs, envPrefix+"NO_PDFS")
    setBool(&cfg.SMSText, envPrefix+"SMS_TEXT")
    setBool(&cfg.Strict, envPrefix+"STRICT")
    setBool(&cfg.CallsDedup, envPrefix+"CALLS_DEDUP")
    setBool(&cfg.CallsPDF, envPrefix+"CALLS_PDF")
    setBool(&cfg.Manifest, envPrefix+"MANIFEST")
    setBool(&cfg.Verbose, "VERBOSE")
}
