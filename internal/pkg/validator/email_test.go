package validator

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "Valid", email: "ada@example.com"},
		{name: "Empty", email: "", wantErr: true},
		{name: "No At", email: "ada.example.com", wantErr: true},
		{name: "No TLD", email: "ada@localhost", wantErr: true},
		{name: "Display Name", email: "Ada <ada@example.com>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "Valid", password: "hunter22x"},
		{name: "Too Short", password: "a1b2", wantErr: true},
		{name: "Letters Only", password: "abcdefghij", wantErr: true},
		{name: "Digits Only", password: "1234567890", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ada@Example.COM "); got != "ada@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
