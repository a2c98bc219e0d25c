package connectors

import "testing"

func TestSenderFilterAdmit(t *testing.T) {
	f := NewSenderFilter("leads@moves.example, partner.example ,")

	cases := []struct {
		from string
		want bool
	}{
		{"Moving Leads <leads@moves.example>", true},
		{"LEADS@MOVES.EXAMPLE", true},
		{"quotes@partner.example", true},
		{"spam@elsewhere.example", false},
		{"", false},
	}
	for _, c := range cases {
		if got := f.Admit(c.from); got != c.want {
			t.Fatalf("Admit(%q)=%v", c.from, got)
		}
	}

	open := NewSenderFilter(" ")
	if !open.Admit("anyone@anywhere.example") {
		t.Fatal("empty filter must admit everything")
	}
	if n := len(NewSenderFilter("a@b.c,d.e").Senders()); n != 2 {
		t.Fatalf("senders=%d", n)
	}
}
