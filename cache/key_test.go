package cache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCanonicalValue_BasicTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "int", value: 42, want: "int:42"},
		{name: "string", value: "hello", want: "string:hello"},
		{name: "bool", value: true, want: "bool:true"},
		{name: "float", value: 3.14, want: "float64:3.14"},
		{name: "string with separator", value: "hello:world", want: "string:hello:world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonicalValue(tt.value)
			if got != tt.want {
				t.Errorf("canonicalValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalValue_NilValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "nil interface", value: nil, want: "nil"},
		{name: "nil pointer", value: (*int)(nil), want: "nil"},
		{name: "nil slice", value: ([]int)(nil), want: "slice:nil"},
		{name: "nil map", value: (map[string]int)(nil), want: "map:nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonicalValue(tt.value)
			if got != tt.want {
				t.Errorf("canonicalValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalValue_Collections(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "empty slice", value: []int{}, want: "slice[0]:{}"},
		{name: "int slice", value: []int{1, 2, 3}, want: "slice[3]:{5#int:1,5#int:2,5#int:3}"},
		{name: "int array", value: [2]int{1, 2}, want: "array[2]:{5#int:1,5#int:2}"},
		{name: "nested slice", value: [][]int{{1}, {2}}, want: "slice[2]:{18#slice[1]:{5#int:1},18#slice[1]:{5#int:2}}"},
		{name: "map sorted", value: map[string]int{"b": 2, "a": 1}, want: "map[2]:{8#string:a=5#int:1,8#string:b=5#int:2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := canonicalValue(tt.value)
			if got != tt.want {
				t.Errorf("canonicalValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonicalValue_Structs(t *testing.T) {
	type User struct {
		ID       int
		Name     string
		password string
	}

	got := canonicalValue(User{ID: 1, Name: "alice", password: "secret"})
	if !strings.HasSuffix(got, "{ID:5#int:1,Name:12#string:alice}") {
		t.Errorf("unexpected struct rendering: %v", got)
	}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := canonicalValue(ts); got != "time.Time:2024-01-02T03:04:05Z" {
		t.Errorf("time should render through MarshalText, got %v", got)
	}
}

func TestKey_EqualForSameSequence(t *testing.T) {
	a := NewKey("users.select", 0, 100, "SELECT * FROM users WHERE id = ?", 7)
	b := NewKey()
	for _, v := range []any{"users.select", 0, 100, "SELECT * FROM users WHERE id = ?", 7} {
		if err := b.Update(v); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	if !a.Equal(b) {
		t.Fatalf("keys built from identical sequences should be equal: %s vs %s", a, b)
	}
	if a.Hash() != b.Hash() || a.Checksum() != b.Checksum() {
		t.Errorf("hash/checksum mismatch: %d/%d vs %d/%d", a.Hash(), a.Checksum(), b.Hash(), b.Checksum())
	}
	if a.Identity() != b.Identity() {
		t.Errorf("identity mismatch")
	}
}

func TestKey_NestedSeparatorsStayDistinct(t *testing.T) {
	type pair struct {
		A string
		B string
	}

	tests := []struct {
		name string
		a    *Key
		b    *Key
	}{
		{
			name: "slice elements",
			a:    NewKey("s", []string{"x,string:y", "z"}),
			b:    NewKey("s", []string{"x", "y,string:z"}),
		},
		{
			name: "map entries",
			a:    NewKey("s", map[string]string{"a=string:b": "c"}),
			b:    NewKey("s", map[string]string{"a": "b=string:c"}),
		},
		{
			name: "struct fields",
			a:    NewKey("s", pair{A: "x,B:string:y", B: ""}),
			b:    NewKey("s", pair{A: "x", B: "y,B:string:"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.Equal(tt.b) {
				t.Errorf("keys should differ: %s vs %s", tt.a, tt.b)
			}
			if tt.a.Identity() == tt.b.Identity() {
				t.Errorf("identities should differ: %s", tt.a.Identity())
			}
		})
	}
}

func TestKey_NotEqual(t *testing.T) {
	base := NewKey("s", 1, 2)

	tests := []struct {
		name  string
		other *Key
	}{
		{name: "different order", other: NewKey("s", 2, 1)},
		{name: "different count", other: NewKey("s", 1, 2, 3)},
		{name: "different value", other: NewKey("s", 1, 3)},
		{name: "different type", other: NewKey("s", "1", 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if base.Equal(tt.other) {
				t.Errorf("keys should differ: %s vs %s", base, tt.other)
			}
			if base.Identity() == tt.other.Identity() {
				t.Errorf("identities should differ")
			}
		})
	}
}

func TestKey_IdentityInsensitiveToPointers(t *testing.T) {
	x, y := 5, 5
	a := NewKey("s", &x, []byte("abc"))
	b := NewKey("s", &y, []byte("abc"))

	if !a.Equal(b) {
		t.Errorf("keys with equal pointees and equal byte content should be equal")
	}
}

func TestKey_NilContributions(t *testing.T) {
	a := NewKey("s", nil)
	b := NewKey("s", (*string)(nil))

	if !a.Equal(b) || a.Identity() != b.Identity() {
		t.Errorf("nil and typed nil pointer should contribute identically")
	}
}

func TestKey_Clone(t *testing.T) {
	original := NewKey("s", 1)
	clone := original.Clone()

	if !original.Equal(clone) {
		t.Fatal("clone should equal original")
	}

	if err := clone.Update(2); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if original.Equal(clone) {
		t.Error("mutating the clone must not affect the original")
	}
	if original.UpdateCount() != 2 {
		t.Errorf("original update count = %d, want 2", original.UpdateCount())
	}
}

func TestKey_NullKeyRejectsMutation(t *testing.T) {
	null := NullKey()

	if !null.IsNull() {
		t.Fatal("NullKey() should report IsNull")
	}
	if err := null.Update("x"); !errors.Is(err, ErrNullKeyMutation) {
		t.Errorf("Update() error = %v, want ErrNullKeyMutation", err)
	}
	if err := null.UpdateAll("x", "y"); !errors.Is(err, ErrNullKeyMutation) {
		t.Errorf("UpdateAll() error = %v, want ErrNullKeyMutation", err)
	}
	if null.UpdateCount() != 0 {
		t.Errorf("null key should stay empty")
	}
}

func TestKey_String(t *testing.T) {
	k := NewKey("s", 1)
	parts := strings.Split(k.String(), KeySeparator)
	// hash, checksum, "string", "s", "int", "1"
	if len(parts) != 6 {
		t.Fatalf("unexpected string form %q", k.String())
	}
	if parts[len(parts)-1] != "1" {
		t.Errorf("last segment = %q, want 1", parts[len(parts)-1])
	}
}

func BenchmarkKeyUpdate(b *testing.B) {
	args := []any{"users.select", 0, 100, "SELECT * FROM users", []int{1, 2, 3}, map[string]int{"test": 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewKey(args...)
	}
}
