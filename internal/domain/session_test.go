package domain

import "testing"

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x1", true},
		{"0xABCdef", true},
		{"0x6b3720cd988adeaf721ed9d4730da4324d52364871a68eac62b46d21e4d2fa99", true},
		{"0x", false},
		{"6b37", false},
		{"0xaa_0xbb", false},
		{"0xzz", false},
		{"0x6b3720cd988adeaf721ed9d4730da4324d52364871a68eac62b46d21e4d2fa990", false},
	}
	for _, tt := range tests {
		if got := IsValidAddress(tt.addr); got != tt.want {
			t.Errorf("IsValidAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestPairKey(t *testing.T) {
	a := NewPairKey("1_0xaa", "0xbb")
	b := NewPairKey("1", "0xaa_0xbb")
	if a == b {
		t.Errorf("keys %v and %v must differ", a, b)
	}

	s := &CopyTradeSession{FollowerID: "7", MasterAddress: " 0xABC "}
	if s.Key() != NewPairKey("7", "0xabc") {
		t.Errorf("Key() = %v, want case-insensitive master", s.Key())
	}
}
