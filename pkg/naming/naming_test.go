package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alpha Corp", "Alpha_Corp"},
		{"Crédit Agricole S.A.", "Crdit_Agricole_SA"},
		{"  lots\t of \n space ", "_lots_of_space_"},
		{"already_clean-name", "already_clean-name"},
		{"L'Oréal (2023)", "LOral_2023"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.in))
		})
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		detected string
		want     string
	}{
		{"simple", "Alpha Corp", "001.pdf", "Alpha_Corp_001.pdf"},
		{"accented", "Crédit Agricole S.A.", "9f3a.pdf", "Crdit_Agricole_SA_9f3a.pdf"},
		{"missing title", "", "abc.pdf", "_abc.pdf"},
		{"no extension", "Beta", "report", "Beta_report"},
		{"multiple dots keeps last ext", "Gamma", "doc.v2.zip", "Gamma_doc.v2.zip"},
		{"full path uses base name", "Delta", "/tmp/downloads/x1.pdf", "Delta_x1.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.title, tt.detected))
		})
	}
}

func TestComposeOutputCharset(t *testing.T) {
	name := Compose("Société Générale & Co. / Ltd", "f.pdf")
	stem := name[:len(name)-len("_f.pdf")]
	assert.Regexp(t, `^[A-Za-z0-9_-]*$`, stem)
}
