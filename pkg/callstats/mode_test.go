package callstats

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Disabled, false},
		{"disabled", Disabled, false},
		{"Enabled", Enabled, false},
		{" on ", Enabled, false},
		{"sampling", Sampling, false},
		{"verbose", Disabled, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModeString(t *testing.T) {
	for _, m := range []Mode{Disabled, Enabled, Sampling} {
		back, err := ParseMode(m.String())
		if err != nil || back != m {
			t.Errorf("Mode %d does not survive String/ParseMode: %v, %v", m, back, err)
		}
	}
}

func TestSnapshotAdd(t *testing.T) {
	a := Snapshot{{Name: "X", Time: 3, Count: 1}, {Name: "Y", Time: 1, Count: 1}}
	b := Snapshot{{Name: "Y", Time: 4, Count: 2}, {Name: "Z", Time: 2, Count: 1}}

	sum := a.Add(b)
	if len(sum) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(sum))
	}
	if y, _ := sum.Lookup("Y"); y.Time != 5 || y.Count != 3 {
		t.Errorf("Expected Y=5/3, got %v/%d", y.Time, y.Count)
	}
	if _, ok := sum.Lookup("Z"); !ok {
		t.Error("Z should be appended")
	}
	if a[1].Time != 1 {
		t.Error("Add must not modify the receiver")
	}
	if total := sum.Total(); total.Time != 10 || total.Count != 5 {
		t.Errorf("Expected total 10/5, got %v/%d", total.Time, total.Count)
	}
}
