package form

import "strings"

// Command identifies a recognized conversational command.
type Command string

const (
	CommandNone        Command = ""
	CommandAdvance     Command = "advance"
	CommandBack        Command = "back"
	CommandSummary     Command = "summary"
	CommandConfirm     Command = "confirm"
	CommandReset       Command = "reset"
	CommandHelp        Command = "help"
	CommandCheckStatus Command = "check_status"
	CommandGreeting    Command = "greeting"
)

// CommandRule maps a set of keywords to a command. Rules are evaluated in
// order; the first rule with a matching keyword wins.
type CommandRule struct {
	Command  Command  `yaml:"command"`
	Keywords []string `yaml:"keywords"`
}

// DefaultCommandRules returns the built-in command table. Multi-word
// keywords come before their single-word prefixes so the longer intent wins.
func DefaultCommandRules() []CommandRule {
	return []CommandRule{
		{Command: CommandCheckStatus, Keywords: []string{"cek status", "status pendaftaran", "check status"}},
		{Command: CommandConfirm, Keywords: []string{"konfirmasi", "daftar sekarang", "submit", "kirim data"}},
		{Command: CommandReset, Keywords: []string{"reset", "ulang dari awal", "mulai ulang", "hapus semua"}},
		{Command: CommandSummary, Keywords: []string{"ringkasan", "summary", "lihat data", "data saya"}},
		{Command: CommandBack, Keywords: []string{"kembali", "sebelumnya", "mundur", "back"}},
		{Command: CommandAdvance, Keywords: []string{"lanjut", "next", "selanjutnya", "lanjutkan", "teruskan"}},
		{Command: CommandHelp, Keywords: []string{"bantuan", "help", "tolong", "cara pakai", "panduan"}},
		{Command: CommandGreeting, Keywords: []string{"halo", "hai", "hello", "assalamualaikum", "selamat pagi", "selamat siang", "selamat sore", "selamat malam"}},
	}
}

// DetectCommand matches a message against an ordered command rule table.
// Matching is substring-based on the lowercased message, like the keyword
// tables it is configured from.
func DetectCommand(message string, rules []CommandRule) Command {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return CommandNone
	}
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Command
			}
		}
	}
	return CommandNone
}
