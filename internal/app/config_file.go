package app

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/rs/zerolog/log"
    yaml "gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks configuration and usage errors.
var ErrInvalidConfig = errors.New("invalid config")

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
    Type     string `yaml:"type" json:"type"`
    Input    string `yaml:"input" json:"input"`
    Output   string `yaml:"output" json:"output"`
    Strict   bool   `yaml:"strict" json:"strict"`
    Manifest bool   `yaml:"manifest" json:"manifest"`
    Verbose  bool   `yaml:"verbose" json:"verbose"`

    Skip struct {
        Images bool `yaml:"images" json:"images"`
        Videos bool `yaml:"videos" json:"videos"`
        Audio  bool `yaml:"audio" json:"audio"`
        PDFs   bool `yaml:"pdfs" json:"pdfs"`
    } `yaml:"skip" json:"skip"`

    SMS struct {
        Text bool `yaml:"text" json:"text"`
    } `yaml:"sms" json:"sms"`

    Calls struct {
        Dedup bool `yaml:"dedup" json:"dedup"`
        PDF   bool `yaml:"pdf" json:"pdf"`
    } `yaml:"calls" json:"calls"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
    var fc FileConfig
    b, err := os.ReadFile(path)
    if err != nil {
        return fc, err
    }
    switch ext := strings.ToLower(filepath.Ext(path)); ext {
    case ".yaml", ".yml":
        if err := yaml.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse yaml: %w", err)
        }
    case ".json":
        if err := json.Unmarshal(b, &fc); err != nil {
            return fc, fmt.Errorf("parse json: %w", err)
        }
    default:
        // Try YAML then JSON
        if err := yaml.Unmarshal(b, &fc); err != nil {
            if jerr := json.Unmarshal(b, &fc); jerr != nil {
                return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
            }
        }
    }
    return fc, nil
}

// ApplyFileConfig fills fields that are still unset in cfg from fc. Flags and
// env are applied first so they win over the file.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
    if cfg == nil { return }

    if cfg.Type == "" && fc.Type != "" { cfg.Type = strings.ToLower(strings.TrimSpace(fc.Type)) }
    if cfg.InputPath == "" && fc.Input != "" { cfg.InputPath = fc.Input }
    if cfg.OutputDir == "" && fc.Output != "" { cfg.OutputDir = fc.Output }

    if !cfg.Strict && fc.Strict { cfg.Strict = true }
    if !cfg.Manifest && fc.Manifest { cfg.Manifest = true }
    if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }

    if !cfg.NoImages && fc.Skip.Images { cfg.NoImages = true }
    if !cfg.NoVideos && fc.Skip.Videos { cfg.NoVideos = true }
    if !cfg.NoAudio && fc.Skip.Audio { cfg.NoAudio = true }
    if !cfg.NoPDFs && fc.Skip.PDFs { cfg.NoPDFs = true }

    if !cfg.SMSText && fc.SMS.Text { cfg.SMSText = true }
    if !cfg.CallsDedup && fc.Calls.Dedup { cfg.CallsDedup = true }
    if !cfg.CallsPDF && fc.Calls.PDF { cfg.CallsPDF = true }
}

// ValidateConfig checks required settings. Errors wrap ErrInvalidConfig.
func ValidateConfig(cfg Config) error {
    switch cfg.Type {
    case TypeSMS, TypeCalls, TypeVCF, TypeAll:
    case "":
        return fmt.Errorf("%w: backup type is required (-t sms|calls|vcf|all)", ErrInvalidConfig)
    default:
        return fmt.Errorf("%w: unknown backup type %q", ErrInvalidConfig, cfg.Type)
    }
    if strings.TrimSpace(cfg.InputPath) == "" {
        return fmt.Errorf("%w: input path is required", ErrInvalidConfig)
    }
    if strings.TrimSpace(cfg.OutputDir) == "" {
        return fmt.Errorf("%w: output directory is required", ErrInvalidConfig)
    }
    if cfg.Type == TypeSMS && cfg.NoImages && cfg.NoVideos && cfg.NoAudio && cfg.NoPDFs {
        log.Warn().Msg("all media filters set; only contact attachments will be extracted")
    }
    return nil
}
