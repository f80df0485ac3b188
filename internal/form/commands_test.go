package form

import "testing"

func TestDetectCommand(t *testing.T) {
	rules := DefaultCommandRules()
	cases := []struct {
		message string
		want    Command
	}{
		{"lanjut", CommandAdvance},
		{"oke lanjutkan saja", CommandAdvance},
		{"kembali dulu", CommandBack},
		{"lihat data saya dong", CommandSummary},
		{"konfirmasi", CommandConfirm},
		{"reset semua", CommandReset},
		{"bantuan", CommandHelp},
		{"cek status pendaftaran saya", CommandCheckStatus},
		{"halo", CommandGreeting},
		{"nama saya Ahmad", CommandNone},
		{"", CommandNone},
	}
	for _, c := range cases {
		if got := DetectCommand(c.message, rules); got != c.want {
			t.Errorf("DetectCommand(%q) = %q, want %q", c.message, got, c.want)
		}
	}
}

func TestDetectCommandFirstRuleWins(t *testing.T) {
	// "cek status" must win over any later rule that could also match.
	got := DetectCommand("cek status", DefaultCommandRules())
	if got != CommandCheckStatus {
		t.Errorf("DetectCommand(cek status) = %q, want check_status", got)
	}
}

func TestDetectCommandEmptyRules(t *testing.T) {
	if got := DetectCommand("lanjut", nil); got != CommandNone {
		t.Errorf("no rules must detect nothing, got %q", got)
	}
}
