package s3backend

import "testing"

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b := &Backend{}
			if err := WithPrefix(tt.input)(b); err != nil {
				t.Fatalf("WithPrefix() error = %v", err)
			}
			if b.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", b.prefix, tt.want)
			}
		})
	}
}

func TestBackend_objectKey(t *testing.T) {
	b := &Backend{prefix: "data/"}
	if got := b.objectKey("chunk/0.0"); got != "data/chunk/0.0" {
		t.Errorf("objectKey() = %q, want %q", got, "data/chunk/0.0")
	}
}
