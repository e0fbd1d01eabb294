package numparse

import "testing"

func TestParse_LocaleConventions(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"$ 9.811,93", 9811.93},
		{"9,81", 9.81},
		{"9,811", 9.811},
		{"1.234.567,89", 1234567.89},
		{"1,234,567.89", 1234567.89},
		{"USD 12.5", 12.5},
		{"42", 42},
		{"-3,5", -3.5},
		{"  7  ", 7},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if !ok {
			t.Fatalf("Parse(%q) not parseable", tc.in)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "$", "--", "..", ","} {
		if v, ok := Parse(in); ok {
			t.Fatalf("Parse(%q) = %v, want not-a-number", in, v)
		}
	}
}

func TestValue_Shapes(t *testing.T) {
	if v, ok := Value(float64(12.5)); !ok || v != 12.5 {
		t.Fatalf("Value(float64) = %v %v", v, ok)
	}
	if v, ok := Value(7); !ok || v != 7 {
		t.Fatalf("Value(int) = %v %v", v, ok)
	}
	if v, ok := Value("1.234,5"); !ok || v != 1234.5 {
		t.Fatalf("Value(string) = %v %v", v, ok)
	}
	if _, ok := Value(nil); ok {
		t.Fatal("Value(nil) should not parse")
	}
	if _, ok := Value(struct{}{}); ok {
		t.Fatal("Value(struct) should not parse")
	}
}
