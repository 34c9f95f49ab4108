package app

// Backup types accepted by -type.
const (
	TypeSMS   = "sms"
	TypeCalls = "calls"
	TypeVCF   = "vcf"
	TypeAll   = "all"
)

// Config holds runtime configuration for the application.
type Config struct {
	Type      string
	InputPath string
	OutputDir string

	// Media filters for sms; all kinds are extracted by default.
	NoImages bool
	NoVideos bool
	NoAudio  bool
	NoPDFs   bool

	// SMSText also exports message bodies to sms_messages.csv for sms.
	SMSText bool

	// Behavior
	Strict     bool
	CallsDedup bool
	CallsPDF   bool
	Manifest   bool
	Verbose    bool
}
